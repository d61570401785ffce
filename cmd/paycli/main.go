// Command paycli 在终端中发起 M-Pesa 支付并等待确认
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"studysphere/pkg/client"
)

var version = "dev"

type globalFlags struct {
	apiURL  string
	token   string
	timeout time.Duration
}

func main() {
	// 本地调试时从 .env 读取 token
	_ = godotenv.Load()

	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:          "paycli",
		Short:        "StudySphere payment client",
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.apiURL, "api", envOr("PAYCLI_API_URL", "http://localhost:3000"), "payment API base URL")
	rootCmd.PersistentFlags().StringVar(&flags.token, "token", os.Getenv("PAYCLI_TOKEN"), "Supabase access token")
	rootCmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "HTTP request timeout")

	rootCmd.AddCommand(payCmd(flags))
	rootCmd.AddCommand(statusCmd(flags))
	rootCmd.AddCommand(plansCmd(flags))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (f *globalFlags) client() *client.Client {
	return client.New(client.Config{
		BaseURL: f.apiURL,
		Token:   f.token,
		Timeout: f.timeout,
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
