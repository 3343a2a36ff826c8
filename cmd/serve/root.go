package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/stcp/cmd/util"
	"github.com/ValentinKolb/stcp/common"
	"github.com/ValentinKolb/stcp/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = common.ServerSettings{}
	payloadSize    int
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the stcp demo echo server",
		Long:    `Start a demo server that receives fixed-size payloads and echoes them back. The configuration can be set via command line flags or environment variables. The format of the environment variables is STCP_<flag> (e.g. STCP_MAX_CONNECTIONS=16)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:9000", cmdUtil.WrapString("The address on which the server will listen"))

	key = "max-connections"
	ServeCmd.PersistentFlags().Int(key, common.DefaultMaxConnections, cmdUtil.WrapString("Maximum number of simultaneously admitted connections. The accept loop pauses while the registry is at capacity"))

	key = "allow"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated allow list of remote addresses. When non-empty only listed addresses are admitted"))

	key = "block"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated block list of remote addresses"))

	key = "payload"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("Number of bytes the echo server reads per exchange"))

	cmdUtil.SetupTransportFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server settings
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig = common.NewServerSettings(viper.GetString("endpoint"))
	serveCmdConfig.BufferSize = viper.GetInt("buffer-size")
	serveCmdConfig.MaxConnections = viper.GetInt("max-connections")
	serveCmdConfig.EnableMonitor = viper.GetBool("monitor")
	serveCmdConfig.MonitorInterval = cmdUtil.MonitorIntervalFromViper()
	serveCmdConfig.TLS = cmdUtil.TLSSettingsFromViper()
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if allow := viper.GetString("allow"); allow != "" {
		serveCmdConfig.AllowList = strings.Split(allow, ",")
	}
	if block := viper.GetString("block"); block != "" {
		serveCmdConfig.BlockList = strings.Split(block, ",")
	}

	payloadSize = viper.GetInt("payload")
	if payloadSize <= 0 {
		return fmt.Errorf("payload size must be positive, got %d", payloadSize)
	}

	return serveCmdConfig.Validate()
}

// run starts the demo echo server and blocks until interrupted
func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(serveCmdConfig.LogLevel)

	srv, err := server.New(serveCmdConfig)
	if err != nil {
		return err
	}

	// Echo loop per admitted connection: read payloadSize bytes, write them
	// back, until the connection resolves with a non-success status
	srv.Events().OnConnected(func(info common.ConnectionInfo) {
		go func() {
			for {
				result, err := srv.Receive(info.ID, payloadSize)
				if err != nil || result.Status != common.StatusSuccess {
					return
				}
				if result, err = srv.Send(info.ID, result.Data); err != nil || result.Status != common.StatusSuccess {
					return
				}
			}
		}()
	})

	srv.Events().OnDisconnected(func(info common.ConnectionInfo, reason common.DisconnectReason) {
		server.Logger.Infof("connection %s disconnected (%s)", info.ID, reason)
	})

	if err := srv.Start(); err != nil {
		return err
	}

	// Wait for SIGINT/SIGTERM
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	srv.Stop()

	stats := srv.Stats()
	fmt.Printf("bytes sent: %d, bytes received: %d, accepted: %d, rejected: %d\n",
		stats.BytesSent, stats.BytesReceived, stats.Accepted, stats.Rejected)
	return nil
}

// initConfig reads in ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("stcp")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
