// Package template holds the fixed parts of the output document: top-level
// settings, the DNS block and the rule list. The built-in copy is embedded;
// a file with the same shape can replace it.
package template

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/rules"
)

//go:embed base.yaml
var embedded []byte

// EmbeddedSource names the built-in template in errors and reports.
const EmbeddedSource = "embedded"

type file struct {
	MixedPort          int       `yaml:"mixed-port"`
	AllowLAN           bool      `yaml:"allow-lan"`
	Mode               string    `yaml:"mode"`
	LogLevel           string    `yaml:"log-level"`
	ExternalController string    `yaml:"external-controller"`
	DNS                yaml.Node `yaml:"dns"`
	Rules              []string  `yaml:"rules"`
}

// Template is a parsed and validated base template.
type Template struct {
	Source string

	MixedPort          int
	AllowLAN           bool
	Mode               string
	LogLevel           string
	ExternalController string
	DNS                yaml.Node
	Rules              []model.Rule
}

// Load reads the template at path, or the embedded one when path is empty.
func Load(path string) (*Template, error) {
	if path == "" {
		return Parse(EmbeddedSource, embedded)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, templateError("TEMPLATE_READ_ERROR", "读取模板文件失败", path, "", err)
	}
	return Parse(path, data)
}

// Default returns the embedded template. It panics if the embedded copy is
// invalid, which the package tests rule out.
func Default() *Template {
	t, err := Parse(EmbeddedSource, embedded)
	if err != nil {
		panic(err)
	}
	return t
}

// Parse decodes one YAML document strictly and validates it. Rule actions may
// only name DIRECT, REJECT or a base group.
func Parse(source string, data []byte) (*Template, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, templateError("INVALID_ARGUMENT", "template 不能为空", source, "", nil)
		}
		return nil, templateError("TEMPLATE_YAML_ERROR", "模板 YAML 解析失败", source, "", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, templateError("TEMPLATE_YAML_ERROR", "模板只能包含一个 YAML 文档", source, "", err)
	}

	if f.MixedPort < 1 || f.MixedPort > 65535 {
		return nil, templateError("TEMPLATE_VALIDATE_ERROR", fmt.Sprintf("mixed-port 不合法：%d", f.MixedPort), source, "expected: 1-65535", nil)
	}
	switch f.Mode {
	case "rule", "global", "direct":
	default:
		return nil, templateError("TEMPLATE_VALIDATE_ERROR", fmt.Sprintf("mode 不合法：%q", f.Mode), source, "expected: rule/global/direct", nil)
	}
	if f.LogLevel == "" {
		f.LogLevel = "info"
	}
	if f.DNS.Kind != yaml.MappingNode {
		return nil, templateError("TEMPLATE_VALIDATE_ERROR", "dns 必须是映射", source, "", nil)
	}

	rs, err := rules.ParseList(source, f.Rules, model.BaseGroups)
	if err != nil {
		return nil, err
	}

	return &Template{
		Source:             source,
		MixedPort:          f.MixedPort,
		AllowLAN:           f.AllowLAN,
		Mode:               f.Mode,
		LogLevel:           f.LogLevel,
		ExternalController: f.ExternalController,
		DNS:                f.DNS,
		Rules:              rs,
	}, nil
}

// Document returns a document carrying the template's fixed parts and no
// proxies or groups.
func (t *Template) Document() model.Document {
	lines := make([]string, 0, len(t.Rules))
	for _, r := range t.Rules {
		lines = append(lines, r.String())
	}
	return model.Document{
		MixedPort:          t.MixedPort,
		AllowLAN:           t.AllowLAN,
		Mode:               t.Mode,
		LogLevel:           t.LogLevel,
		ExternalController: t.ExternalController,
		DNS:                t.DNS,
		Rules:              lines,
	}
}
