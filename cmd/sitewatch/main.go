package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/xela07ax/sitesboard/internal/console/grpcapi"
	"github.com/xela07ax/sitesboard/internal/infra"
	"github.com/xela07ax/sitesboard/internal/poller"
)

type watchConfig struct {
	Server   string        `mapstructure:"server"`
	GRPC     string        `mapstructure:"grpc"`
	Period   string        `mapstructure:"period"`
	Date     string        `mapstructure:"date"`
	Segment  string        `mapstructure:"segment"`
	Search   string        `mapstructure:"search"`
	PageSize int           `mapstructure:"page-size"`
	Refresh  time.Duration `mapstructure:"refresh"`
	LogLevel string        `mapstructure:"log-level"`
}

func main() {
	if err := newRootCmd(run).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type runFunc func(ctx context.Context, cfg watchConfig, out io.Writer) error

func newRootCmd(runFn runFunc) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "sitewatch",
		Short: "Watch the All Websites dashboard from the terminal",
		Long: `sitewatch polls the dashboard API and prints the current page of sites.
With --refresh it keeps polling; a new poll is scheduled only after the previous one settles.
Every flag can also be set via SITEWATCH_<FLAG> (dashes become underscores).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg watchConfig
			if err := v.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return runFn(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("server", "http://localhost:8080", "dashboard HTTP API base URL")
	f.String("grpc", "", "dashboard gRPC address; when set, used instead of --server")
	f.String("period", "day", "period: day, week, month, year or range")
	f.String("date", "today", "date of the period (YYYY-MM-DD, today, yesterday or from,to for range)")
	f.String("segment", "", "segment definition")
	f.String("search", "", "initial search term")
	f.Int("page-size", poller.DefaultPageSize, "rows per page")
	f.Duration("refresh", 0, "auto-refresh interval (0 disables)")
	f.String("log-level", "warn", "log level: debug, info, warn, error")

	v.SetEnvPrefix("SITEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(f)

	return cmd
}

func run(ctx context.Context, cfg watchConfig, out io.Writer) error {
	logger, err := infra.NewLogger(infra.LoggerConfig{Level: cfg.LogLevel, Format: "console"})
	if err != nil {
		return err
	}
	defer logger.Sync()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, closeFn, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	model := poller.New(fetcher, poller.Config{
		Period:     cfg.Period,
		Date:       cfg.Date,
		Segment:    cfg.Segment,
		PageSize:   cfg.PageSize,
		SearchTerm: cfg.Search,
	}, logger)
	defer model.Stop()

	model.OnChange = func(s poller.State) {
		printState(out, s, model.NumberOfPages())
	}

	err = model.FetchAllSites(ctx, cfg.Refresh)
	if cfg.Refresh <= 0 {
		return err
	}
	if err != nil && !poller.IsCanceled(err) {
		logger.Warn("first poll failed, will retry", zap.Error(err))
	}

	<-ctx.Done()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func newFetcher(cfg watchConfig) (poller.Fetcher, func(), error) {
	if cfg.GRPC == "" {
		return poller.NewHTTPFetcher(cfg.Server, nil), func() {}, nil
	}

	conn, err := grpc.NewClient(cfg.GRPC, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to dashboard gRPC: %w", err)
	}
	return poller.NewGRPCFetcher(grpcapi.NewClient(conn)), func() { conn.Close() }, nil
}

func printState(out io.Writer, s poller.State, pages int) {
	if s.ErrorLoadingSites {
		fmt.Fprintln(out, "error loading sites")
		return
	}

	fmt.Fprintf(out, "\n%s  visits %d (previous %d)  pageviews %d  revenue %s\n",
		time.Now().Format(time.TimeOnly), s.TotalVisits, s.LastVisits, s.TotalPageviews, s.TotalRevenue)
	if s.LastVisitsDate != "" {
		fmt.Fprintf(out, "previous period: %s\n", s.LastVisitsDate)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SITE\tVISITS\tEVOL%\tPAGEVIEWS\tEVOL%\tREVENUE\tEVOL%\tURL")
	for _, site := range s.Sites {
		label := "  " + site.Label
		if site.IsGroup {
			label = "[" + site.Label + "]"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%d\t%s\n",
			label, site.Visits, site.VisitsEvolution, site.Pageviews, site.PageviewsEvolution,
			site.Revenue, site.RevenueEvolution, site.MainURL)
	}
	tw.Flush()

	fmt.Fprintf(out, "page %d of %d, %d sites", s.CurrentPage+1, max(pages, 1), s.NumSites)
	if s.SearchTerm != "" {
		fmt.Fprintf(out, " matching %q", s.SearchTerm)
	}
	fmt.Fprintln(out)
}
