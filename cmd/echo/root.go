package echo

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/stcp/client"
	cmdUtil "github.com/ValentinKolb/stcp/cmd/util"
	"github.com/ValentinKolb/stcp/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	echoCmdConfig = common.ClientSettings{}
	message       string
	timeout       time.Duration
	EchoCmd       = &cobra.Command{
		Use:     "echo",
		Short:   "Send a payload to an stcp echo server and print the reply",
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "endpoint"
	EchoCmd.PersistentFlags().String(key, "localhost:9000", cmdUtil.WrapString("The address of the stcp server"))

	key = "message"
	EchoCmd.PersistentFlags().String(key, "clientecho", cmdUtil.WrapString("The payload to send. The reply is read with the same length"))

	key = "timeout"
	EchoCmd.PersistentFlags().Duration(key, 10*time.Second, cmdUtil.WrapString("Deadline for connect, send and receive"))

	cmdUtil.SetupTransportFlags(EchoCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the client settings
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	echoCmdConfig = common.NewClientSettings(viper.GetString("endpoint"))
	echoCmdConfig.BufferSize = viper.GetInt("buffer-size")
	echoCmdConfig.EnableMonitor = viper.GetBool("monitor")
	echoCmdConfig.MonitorInterval = cmdUtil.MonitorIntervalFromViper()
	echoCmdConfig.TLS = cmdUtil.TLSSettingsFromViper()
	echoCmdConfig.LogLevel = viper.GetString("log-level")

	message = viper.GetString("message")
	if message == "" {
		return fmt.Errorf("message must not be empty")
	}
	timeout = viper.GetDuration("timeout")

	return echoCmdConfig.Validate()
}

// run connects, sends the payload, reads the echo and disconnects
func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(echoCmdConfig.LogLevel)

	cl, err := client.New(echoCmdConfig)
	if err != nil {
		return err
	}

	if err := cl.Connect(timeout); err != nil {
		return err
	}
	defer cl.Disconnect()

	result, err := cl.SendTimeout([]byte(message), timeout)
	if err != nil {
		return err
	}
	if result.Status != common.StatusSuccess {
		return fmt.Errorf("send resolved with status %s", result.Status)
	}

	result, err = cl.ReceiveTimeout(len(message), timeout)
	if err != nil {
		return err
	}
	if result.Status != common.StatusSuccess {
		return fmt.Errorf("receive resolved with status %s", result.Status)
	}

	fmt.Printf("%s\n", result.Data)
	return nil
}
