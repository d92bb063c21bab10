package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/rowloom-cli/internal/config"
	"github.com/KaramelBytes/rowloom-cli/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set RowLoom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		fmt.Fprintf(out, "api_base_url: %s\n", cfg.APIBaseURL)
		fmt.Fprintf(out, "api_key: %s\n", mask(cfg.APIKey))
		fmt.Fprintf(out, "upload_batch_size: %d\n", cfg.UploadBatchSize)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(out, "retry_base_delay_ms: %d\n", cfg.RetryBaseDelayMs)
		fmt.Fprintf(out, "retry_max_delay_ms: %d\n", cfg.RetryMaxDelayMs)
		fmt.Fprintf(out, "sample_rows: %d\n", cfg.SampleRows)
		fmt.Fprintf(out, "strict_mapping: %t\n", cfg.StrictMapping)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		switch key {
		case "api_base_url":
			if val != "" {
				if _, err := url.ParseRequestURI(val); err != nil {
					return fmt.Errorf("invalid url for api_base_url: %v", val)
				}
			}
			cfg.APIBaseURL = val
		case "api_key":
			cfg.APIKey = val
		case "upload_batch_size", "http_timeout_sec", "retry_max_attempts",
			"retry_base_delay_ms", "retry_max_delay_ms", "sample_rows":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid positive int for %s: %v", key, val)
			}
			switch key {
			case "upload_batch_size":
				cfg.UploadBatchSize = i
			case "http_timeout_sec":
				cfg.HTTPTimeoutSec = i
			case "retry_max_attempts":
				cfg.RetryMaxAttempts = i
			case "retry_base_delay_ms":
				cfg.RetryBaseDelayMs = i
			case "retry_max_delay_ms":
				cfg.RetryMaxDelayMs = i
			case "sample_rows":
				cfg.SampleRows = i
			}
		case "strict_mapping":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid bool for strict_mapping: %v", val)
			}
			cfg.StrictMapping = b
		case "log_level":
			if _, err := logging.ParseLevel(val); err != nil {
				return err
			}
			cfg.LogLevel = val
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
