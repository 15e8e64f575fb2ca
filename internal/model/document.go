package model

import "gopkg.in/yaml.v3"

// Document is the assembled client configuration. Field order is the
// emission order; the key names are a compatibility contract with the
// downstream proxy client.
type Document struct {
	MixedPort          int    `yaml:"mixed-port"`
	AllowLAN           bool   `yaml:"allow-lan"`
	Mode               string `yaml:"mode"`
	LogLevel           string `yaml:"log-level"`
	ExternalController string `yaml:"external-controller,omitempty"`

	DNS yaml.Node `yaml:"dns"`

	Proxies     []Node   `yaml:"proxies"`
	ProxyGroups []Group  `yaml:"proxy-groups"`
	Rules       []string `yaml:"rules"`
}
