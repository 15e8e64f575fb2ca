package model

// Group kinds.
const (
	GroupSelect        = "select"
	GroupLoadBalance   = "load-balance"
	GroupURLTest       = "url-test"
	DirectTarget       = "DIRECT"
	RejectTarget       = "REJECT"
	StrategyConsistent = "consistent-hashing"
)

// Base group names. They always exist in the output document.
const (
	GroupSelector = "节点选择"
	GroupBalance  = "负载均衡"
	GroupAuto     = "自动选择"
)

// BaseGroups lists the base group names in emission order.
var BaseGroups = []string{GroupSelector, GroupBalance, GroupAuto}

// IsReserved reports whether name is a base group or a built-in target.
func IsReserved(name string) bool {
	switch name {
	case GroupSelector, GroupBalance, GroupAuto, DirectTarget, RejectTarget:
		return true
	}
	return false
}

// Group is a proxy group in the output document. Proxies holds node names or
// names of other groups/targets, in emission order.
type Group struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// load-balance and url-test only
	URL       string `yaml:"url,omitempty"`
	Interval  int    `yaml:"interval,omitempty"`
	Tolerance int    `yaml:"tolerance,omitempty"`
	Strategy  string `yaml:"strategy,omitempty"`

	Proxies []string `yaml:"proxies"`
}
