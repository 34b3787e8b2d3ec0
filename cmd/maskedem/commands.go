package main

import (
	"github.com/spf13/cobra"
)

var (
	logLevel string
	logJSON  bool

	rootCmd = &cobra.Command{
		Use:           "maskedem",
		Short:         "Masked EM clustering of synthetic feature data",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Cluster a scenario, checkpointing along the way",
		Long: `Generates the points of a scenario (a YAML file or a built-in name such as
2d-trivial or 4d-easy), clusters them and reports how well the generating
groups were recovered. Checkpoints go to a local directory, S3 or MinIO.`,
		Args: cobra.NoArgs,
		RunE: runRun, // Defined in cmd_run.go
	}

	inspectCmd = &cobra.Command{
		Use:   "inspect [checkpoint file]",
		Short: "Print the header and summary of a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect, // Defined in cmd_inspect.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON logs")

	f := runCmd.Flags()
	f.StringVar(&runFlags.scenario, "scenario", "2d-trivial", "scenario YAML file or built-in name")
	f.StringVar(&runFlags.config, "config", "", "engine config YAML (defaults apply to missing fields)")
	f.StringVar(&runFlags.checkpointDir, "checkpoint-dir", "", "write checkpoints to this directory")
	f.StringVar(&runFlags.s3Bucket, "s3-bucket", "", "write checkpoints to this S3 bucket")
	f.StringVar(&runFlags.s3Region, "s3-region", "", "AWS region of the S3 bucket")
	f.StringVar(&runFlags.s3Endpoint, "s3-endpoint", "", "custom S3 endpoint")
	f.StringVar(&runFlags.minioEndpoint, "minio-endpoint", "", "write checkpoints to this MinIO endpoint")
	f.StringVar(&runFlags.minioBucket, "minio-bucket", "maskedem", "MinIO bucket")
	f.BoolVar(&runFlags.minioSecure, "minio-secure", false, "use TLS for MinIO")
	f.StringVar(&runFlags.prefix, "prefix", "", "key prefix for remote checkpoint stores")
	f.IntVar(&runFlags.checkpointEvery, "checkpoint-every", 10, "checkpoint every n iterations (0 only at the end)")
	f.IntVar(&runFlags.keep, "keep", 3, "checkpoints to keep per run")
	f.StringVar(&runFlags.compression, "compression", "zstd", "checkpoint compression (none, lz4, zstd)")
	f.StringVar(&runFlags.resume, "resume", "", "resume the latest checkpoint of this run id")
	f.StringVar(&runFlags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.Float64Var(&runFlags.fraction, "fraction", 0.02, "tolerated misassigned fraction per group")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
}
