package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/rhp30760/sharestream-local/internal/config"
	"github.com/rhp30760/sharestream-local/internal/util"
	"github.com/rhp30760/sharestream-local/pkg/discovery"
	"github.com/rhp30760/sharestream-local/pkg/fileInfo"
	"github.com/rhp30760/sharestream-local/pkg/receiver"
	"github.com/rhp30760/sharestream-local/pkg/sender"
	"github.com/rhp30760/sharestream-local/pkg/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	var (
		configDir string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "sharestream",
		Short: "Peer-to-peer file transfer over the local network",
	}
	cmd.PersistentFlags().StringVar(&configDir, "config", ".", "Directory containing config.yaml")
	cmd.PersistentFlags().IntVar(&port, "port", 0, "Override the signaling port")

	loadConfig := func() (*config.AppConfig, error) {
		cfg, err := config.Load(configDir)
		if err != nil {
			return nil, err
		}
		if port != 0 {
			cfg.ListenPort = port
		}
		return cfg, nil
	}

	openStore := func(cfg *config.AppConfig) (*store.ContentStore, *store.BadgerStore, error) {
		badgerStore, err := store.OpenBadgerStore(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		contentStore, err := store.Open(badgerStore)
		if err != nil {
			badgerStore.Close()
			return nil, nil, err
		}
		return contentStore, badgerStore, nil
	}

	receiveCmd := &cobra.Command{
		Use:   "receive",
		Short: "Announce this device and accept inbound transfers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			contentStore, badgerStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer badgerStore.Close()
			defer contentStore.Flush()

			app := receiver.NewApp(receiver.Options{
				Port:           cfg.ListenPort,
				DeviceName:     cfg.DeviceName,
				TransferConfig: cfg.TransferConfig(),
				Store:          contentStore,
			})
			slog.Info("Receiver starting", "device_id", app.DeviceID(), "port", cfg.ListenPort)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := app.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	var discoverTimeout time.Duration
	sendCmd := &cobra.Command{
		Use:   "send <receiver> <file>...",
		Short: "Send files to a receiver found on the local network",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app := sender.NewApp(&discovery.MDNSAdapter{}, cfg.TransferConfig())

			findCtx, cancel := context.WithTimeout(ctx, discoverTimeout)
			defer cancel()
			target, err := app.FindReceiver(findCtx, args[0])
			if err != nil {
				return err
			}
			slog.Info("Found receiver", "name", target.Name, "addr", target.Addr, "port", target.Port)

			return app.SendFiles(ctx, target, args[1:])
		},
	}
	sendCmd.Flags().DurationVar(&discoverTimeout, "discover-timeout", 10*time.Second, "How long to browse for the receiver")

	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect and manage the local content store",
	}

	storeAddCmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Import local files into the content store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			contentStore, badgerStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer badgerStore.Close()

			for _, path := range args {
				file, err := fileInfo.LoadSourceFile(path)
				if err != nil {
					return err
				}
				id, mirrored := contentStore.Put(file.Descriptor.Name, file.Descriptor.MimeType, file.Data)
				if err := <-mirrored; err != nil {
					return fmt.Errorf("stored %s in memory but the durable write failed: %w", id, err)
				}
				fmt.Printf("%s  %s\n", id, file.Descriptor.Name)
			}
			return nil
		},
	}

	storeListCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			contentStore, badgerStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer badgerStore.Close()

			for _, entry := range contentStore.List() {
				fmt.Printf("%s  %-30s  %10s  %s  %s\n",
					entry.ID, entry.Name, util.FormatSize(int64(entry.Size)),
					entry.Type, entry.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	var outputPath string
	storeGetCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Write a stored file to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			contentStore, badgerStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer badgerStore.Close()

			record, err := contentStore.Get(args[0])
			if err != nil {
				return err
			}
			if !record.HasData {
				return fmt.Errorf("%s is known by metadata only, its bytes were never mirrored", args[0])
			}

			target := outputPath
			if target == "" {
				target = record.Name
			}
			if err := os.WriteFile(target, record.Data, 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s (%s)\n", target, util.FormatSize(int64(record.Size)))
			return nil
		},
	}
	storeGetCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination path (defaults to the stored name)")

	storeRmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			contentStore, badgerStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer badgerStore.Close()

			existed, err := contentStore.Delete(args[0])
			if err != nil {
				return err
			}
			if !existed {
				return fmt.Errorf("no stored file with id %s", args[0])
			}
			fmt.Println("Deleted", args[0])
			return nil
		},
	}

	storeCmd.AddCommand(storeAddCmd, storeListCmd, storeGetCmd, storeRmCmd)
	cmd.AddCommand(receiveCmd, sendCmd, storeCmd)

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}
