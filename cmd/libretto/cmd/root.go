package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config 命令行配置，来源优先级：flag > 环境变量 LIBRETTO_* > 配置文件 > 默认值
type Config struct {
	Env      string         `mapstructure:"env"`
	Dev      bool           `mapstructure:"dev"`
	HTTP     ListenConfig   `mapstructure:"http"`
	GRPC     ListenConfig   `mapstructure:"grpc"`
	Node     NodeConfig     `mapstructure:"node"`
	Keystore KeystoreConfig `mapstructure:"keystore"`
}

type ListenConfig struct {
	Addr string `mapstructure:"addr"`
}

type NodeConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Protocol string        `mapstructure:"protocol"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type KeystoreConfig struct {
	Dir      string `mapstructure:"dir"`
	Password string `mapstructure:"password"` // 通常通过 LIBRETTO_KEYSTORE_PASSWORD 传入
}

var (
	cfgFile string
	global  Config
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "libretto",
	Short: "时间锁金库节点与命令行工具",
	Long: `libretto 运行一个持有时间锁金库的 JSON-RPC 节点，
并提供创建金库、存款、到期提款以及更换受益人的命令。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "配置文件路径（默认 ./libretto.yaml）")
	flags.String("env", "development", "运行环境：development / production")
	flags.String("endpoint", "http://localhost:8545", "节点地址")
	flags.String("protocol", "http", "节点协议：http / websocket")
	flags.Duration("timeout", 30*time.Second, "请求超时")
	flags.String("keystore", "./keystore", "keystore 目录")

	_ = viper.BindPFlag("env", flags.Lookup("env"))
	_ = viper.BindPFlag("node.endpoint", flags.Lookup("endpoint"))
	_ = viper.BindPFlag("node.protocol", flags.Lookup("protocol"))
	_ = viper.BindPFlag("node.timeout", flags.Lookup("timeout"))
	_ = viper.BindPFlag("keystore.dir", flags.Lookup("keystore"))
}

func setDefaults() {
	viper.SetDefault("dev", false)
	viper.SetDefault("http.addr", ":8545")
	viper.SetDefault("grpc.addr", ":9545")
	viper.SetDefault("keystore.password", "")
}

func loadConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("libretto")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.SetEnvPrefix("LIBRETTO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return fmt.Errorf("read config failed: %w", err)
		}
	}

	if err := viper.Unmarshal(&global); err != nil {
		return fmt.Errorf("decode config failed: %w", err)
	}
	return nil
}
