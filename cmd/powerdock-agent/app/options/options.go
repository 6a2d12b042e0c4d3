package options

import (
	"github.com/spf13/pflag"

	"github.com/powerdock-io/powerdock/internal/agent"
	"github.com/powerdock-io/powerdock/pkg/log"
	"github.com/powerdock-io/powerdock/pkg/options"
)

// AgentOptions collects everything configurable from the command line. The
// device-level configuration (hardware layout, release channel) lives in
// the config file; flags cover the process-level concerns.
type AgentOptions struct {
	// ConfigFile is the path of the device configuration file.
	ConfigFile string

	Log  *log.Options
	Http *options.HttpOptions
	Mqtt *options.MqttOptions
}

func NewAgentOptions() *AgentOptions {
	return &AgentOptions{
		ConfigFile: "/etc/powerdock/config.yaml",
		Log:        log.NewOptions(),
		Http:       options.NewHttpOptions(),
		Mqtt:       options.NewMqttOptions(),
	}
}

func (o *AgentOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, "Path to the device configuration file.")
	o.Log.AddFlags(fs)
	o.Http.AddFlags(fs)
	o.Mqtt.AddFlags(fs)
}

func (o *AgentOptions) Validate() []error {
	errs := []error{}
	errs = append(errs, o.Log.Validate()...)
	errs = append(errs, o.Http.Validate()...)
	errs = append(errs, o.Mqtt.Validate()...)
	return errs
}

// Config loads and validates the device configuration named by the flags.
func (o *AgentOptions) Config() (*agent.Config, error) {
	return agent.LoadConfig(o.ConfigFile)
}
