package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/elfen20/clone-cave-data-sub003/internal/engine"
	"github.com/elfen20/clone-cave-data-sub003/internal/logging"
	"github.com/elfen20/clone-cave-data-sub003/internal/observability"
	"github.com/elfen20/clone-cave-data-sub003/internal/search"
)

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping <database>",
		Short: "Open and return one connection to verify connectivity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			start := time.Now()
			if err := s.Ping(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("ok (%s)\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables <database>",
		Short: "List the tables of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			names, err := s.Database(args[0]).TableNames(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <database> <table>",
		Short: "Show the discovered layout of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			t, err := s.Database(args[0]).Table(ctx, args[1])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tNAME\tTYPE\tFLAGS\tLENGTH")
			layout := t.Layout()
			for i := 0; i < layout.FieldCount(); i++ {
				f := layout.Field(i)
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%g\n", i, f.Name, f.DataType, f.Flags, f.MaximumLength)
			}
			return w.Flush()
		},
	}
}

func countCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "count <database> <table>",
		Short: "Count the rows of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			t, err := s.Database(args[0]).Table(ctx, args[1])
			if err != nil {
				return err
			}
			opts := search.None()
			if group != "" {
				opts = search.Group(group)
			}
			n, err := t.Count(ctx, nil, opts)
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "Count distinct values of this field instead of rows")
	return cmd
}

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <database> <statement>",
		Short: "Run a raw query and print the result set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			rows, layout, err := s.Engine.Query(ctx, args[0], "result", nil, engine.Command{Text: args[1]})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for i := 0; i < layout.FieldCount(); i++ {
				if i > 0 {
					fmt.Fprint(w, "\t")
				}
				fmt.Fprint(w, layout.Field(i).Name)
			}
			fmt.Fprintln(w)
			for _, row := range rows {
				for i, v := range row.Values() {
					if i > 0 {
						fmt.Fprint(w, "\t")
					}
					fmt.Fprintf(w, "%v", v)
				}
				fmt.Fprintln(w)
			}
			return w.Flush()
		},
	}
}

func execCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <database> <statement>",
		Short: "Run a raw statement and print the affected row count",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			affected, err := s.Engine.Execute(ctx, args[0], "statement", engine.Command{Text: args[1]})
			if err != nil {
				return err
			}
			fmt.Printf("%d row(s) affected\n", affected)
			return nil
		},
	}
}

func serveMetricsCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics over HTTP until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, cfg, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			defer observability.Shutdown(context.Background())

			if addr == "" {
				addr = cfg.Server.MetricsAddr
			}
			if addr == "" {
				addr = ":9090"
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", s.Metrics.Handler())
			srv := &http.Server{Addr: addr, Handler: mux}

			errCh := make(chan error, 1)
			go func() {
				logging.Op().Info("metrics server listening", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}
