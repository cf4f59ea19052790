package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weisyn/libretto-go/host"
	"github.com/weisyn/libretto-go/logger"
	"github.com/weisyn/libretto-go/metrics"
	"github.com/weisyn/libretto-go/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动金库节点",
	Long:  `启动 JSON-RPC / WebSocket 节点与 gRPC 健康检查。开发模式下开放 dev_fund 与 dev_increaseTime。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.New(global.Env)
		if err != nil {
			return err
		}
		defer logger.Sync(log)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runNode(ctx, log)
	},
}

func runNode(ctx context.Context, log logger.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	hostCfg := host.DefaultConfig()
	hostCfg.Dev = global.Dev
	if genesis := viper.GetString("genesis"); genesis != "" {
		t, err := time.Parse(time.RFC3339, genesis)
		if err != nil {
			return err
		}
		hostCfg.GenesisTime = t
	}
	h := host.New(hostCfg, host.WithLogger(log), host.WithMetrics(collector))

	srvCfg := server.DefaultConfig()
	srvCfg.HTTPAddr = global.HTTP.Addr
	srvCfg.GRPCAddr = global.GRPC.Addr
	srv := server.New(srvCfg, h, server.WithLogger(log), server.WithMetrics(collector, reg))

	log.Info("starting vault node", "env", global.Env, "dev", global.Dev, "http", srvCfg.HTTPAddr, "grpc", srvCfg.GRPCAddr)
	return srv.Run(ctx)
}

func init() {
	flags := serveCmd.Flags()
	flags.Bool("dev", false, "开发模式")
	flags.String("http-addr", ":8545", "HTTP 监听地址")
	flags.String("grpc-addr", ":9545", "gRPC 健康检查监听地址，空字符串表示不启动")
	flags.String("genesis", "", "开发模式下的起始时间（RFC3339）")

	_ = viper.BindPFlag("dev", flags.Lookup("dev"))
	_ = viper.BindPFlag("http.addr", flags.Lookup("http-addr"))
	_ = viper.BindPFlag("grpc.addr", flags.Lookup("grpc-addr"))
	_ = viper.BindPFlag("genesis", flags.Lookup("genesis"))

	rootCmd.AddCommand(serveCmd)
}
