package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hitoshi/devdash/internal/dashboard"
	"github.com/hitoshi/devdash/internal/model"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func (a *app) syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Load the dashboard and save it to local and remote storage once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			source, err := a.orch.Load(ctx)
			if err != nil {
				return err
			}
			res := a.orch.Save(ctx)
			if res.LocalErr != nil {
				return res.LocalErr
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "loaded from %s, saved locally at %s\n", source, res.SavedAt.Format("2006-01-02 15:04:05"))
			switch {
			case res.RemoteSkipped:
				fmt.Fprintln(out, "remote: not configured")
			case res.RemoteErr != nil:
				fmt.Fprintf(out, "remote: failed (%v)\n", res.RemoteErr)
			default:
				fmt.Fprintf(out, "remote: synced (%s)\n", a.cfg.Remote.Mode)
			}
			return nil
		},
	}
}

func (a *app) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the dashboard loaded and autosave it until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.load(ctx); err != nil {
				return err
			}

			stop := a.orch.StartAutosave(ctx, a.cfg.AutosaveInterval)
			fmt.Fprintf(cmd.OutOrStdout(), "autosaving every %s, press Ctrl+C to stop\n", a.cfg.AutosaveInterval)

			<-ctx.Done()
			stop()

			// 終了時の保存はキャンセル済みのctxを使わない
			res := a.orch.Save(context.WithoutCancel(ctx))
			if res.LocalErr != nil {
				return res.LocalErr
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stopped, final state saved")
			return nil
		},
	}
}

func (a *app) exportCommand() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the dashboard as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			data, err := encodeState(a.orch.Snapshot(), format)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func (a *app) importCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the dashboard with the contents of a JSON or YAML export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read import: %w", err)
			}
			if format == "" {
				format = formatFromPath(args[0])
			}

			state, err := decodeState(data, format)
			if err != nil {
				return err
			}
			if err := a.orch.Update(func(s *dashboard.Store) error {
				s.Replace(state)
				return nil
			}); err != nil {
				return err
			}
			if err := a.save(cmd.Context()); err != nil {
				return err
			}

			items := 0
			for _, c := range state.Categories {
				items += len(c.Items)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d categories, %d items\n", len(state.Categories), items)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "input format: json or yaml (by file extension when empty)")
	return cmd
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

// encodeState は永続化形式と同じフィールド名で状態を出力する。
// YAMLはJSONの形をそのまま写すため、一度汎用の値に変換してから書き出す。
func encodeState(state *model.DashboardState, format string) ([]byte, error) {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode dashboard: %w", err)
	}

	switch strings.ToLower(format) {
	case formatJSON:
		return append(raw, '\n'), nil
	case formatYAML:
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, fmt.Errorf("failed to encode dashboard: %w", err)
		}
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return nil, fmt.Errorf("failed to encode dashboard as yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode dashboard as yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown format %q: use json or yaml", format)
	}
}

// decodeState はJSONまたはYAMLを読み込み、永続化形式と同じ検証を行う。
func decodeState(data []byte, format string) (*model.DashboardState, error) {
	switch strings.ToLower(format) {
	case formatJSON:
		return model.DecodeDashboardState(data)
	case formatYAML:
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("failed to decode yaml: %w", err)
		}
		raw, err := json.Marshal(generic)
		if err != nil {
			return nil, fmt.Errorf("failed to decode yaml: %w", err)
		}
		return model.DecodeDashboardState(raw)
	default:
		return nil, fmt.Errorf("unknown format %q: use json or yaml", format)
	}
}
