package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/democrite/internal/config"
	dockerpkg "github.com/dyluth/democrite/internal/docker"
	"github.com/dyluth/democrite/internal/instance"
	"github.com/dyluth/democrite/internal/printer"
	"github.com/spf13/cobra"
)

var (
	storeNamespace string
	storeJSON      bool
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Run a local Redis store in Docker",
	Long: `Manage local Redis stores for development. Each namespace gets its own labelled
Docker network and Redis container, published on the next free port from 6379.`,
}

var storeUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the Redis store of a namespace",
	Args:  cobra.NoArgs,
	RunE:  runStoreUp,
}

var storeDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop and remove the Redis store of a namespace",
	Long: `Stop and remove every container and network of a namespace store. Board state
kept in the store is lost. The command does not prompt for confirmation.`,
	Args: cobra.NoArgs,
	RunE: runStoreDown,
}

var storeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List the Redis stores known to Docker",
	Args:  cobra.NoArgs,
	RunE:  runStoreStatus,
}

func init() {
	for _, c := range []*cobra.Command{storeUpCmd, storeDownCmd} {
		c.Flags().StringVarP(&storeNamespace, "namespace", "n", "", "Namespace (defaults to the configured one)")
	}
	storeStatusCmd.Flags().BoolVar(&storeJSON, "json", false, "Output in JSON format")

	storeCmd.AddCommand(storeUpCmd, storeDownCmd, storeStatusCmd)
	rootCmd.AddCommand(storeCmd)
}

// storeSettings returns the namespace and image to use. A missing config file falls back
// to the defaults so a store can be started before 'democrite init'.
func storeSettings() (namespace, image string, err error) {
	namespace, image = config.DefaultNamespace, config.DefaultRedisImage

	cfg, err := config.Load(configPath)
	switch {
	case err == nil:
		namespace = cfg.Namespace
		if cfg.Redis.Image != "" {
			image = cfg.Redis.Image
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return "", "", printer.Error("invalid configuration", err.Error(), nil)
	}

	if storeNamespace != "" {
		namespace = storeNamespace
	}
	return namespace, image, nil
}

func runStoreUp(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	namespace, image, err := storeSettings()
	if err != nil {
		return err
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	info, err := instance.Up(ctx, cli, namespace, image, func(format string, a ...any) {
		printer.Success(format, a...)
	})
	if err != nil {
		return printer.ErrorWithContext(
			"failed to start store",
			err.Error(),
			map[string]string{"Namespace": namespace, "Image": image},
			[]string{
				fmt.Sprintf("Stop the existing store: democrite store down --namespace %s", namespace),
				"Choose a different namespace: democrite store up --namespace other",
			},
		)
	}

	fmt.Printf("\n🎉 Store '%s' is ready\n\n", info.Namespace)
	fmt.Printf("  Redis: %s\n\n", info.RedisURL)
	fmt.Println("Point democrite at it with redis.url in democrite.yml, or:")
	fmt.Printf("  export %s=%s\n", config.EnvRedisURL, info.RedisURL)
	return nil
}

func runStoreDown(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	namespace, _, err := storeSettings()
	if err != nil {
		return err
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	if err := instance.Down(ctx, cli, namespace, func(format string, a ...any) {
		printer.Step(format, a...)
	}); err != nil {
		return printer.Error("failed to stop store", err.Error(), []string{"List stores:\n  democrite store status"})
	}
	printer.Success("Store '%s' removed\n", namespace)
	return nil
}

func runStoreStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	infos, err := instance.ListStores(ctx, cli, time.Now())
	if err != nil {
		return err
	}

	if storeJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	}

	if len(infos) == 0 {
		fmt.Println("No democrite stores found.")
		fmt.Println()
		fmt.Println("Run 'democrite store up' to start one.")
		return nil
	}

	fmt.Printf("%-20s %-10s %-30s %s\n", "NAMESPACE", "STATUS", "REDIS", "UPTIME")
	for _, info := range infos {
		redis := info.RedisURL
		if redis == "" {
			redis = "-"
		}
		fmt.Printf("%-20s %-10s %-30s %s\n", info.Namespace, info.Status, redis, info.Uptime)
	}
	return nil
}
