// Package render encodes the assembled document as YAML.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/submerge/internal/model"
)

type RenderError struct {
	AppError model.AppError
	Cause    error
}

func (e *RenderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// YAML encodes doc with two-space indentation. Every line of preamble becomes
// a leading "# " comment line.
func YAML(doc model.Document, preamble string) ([]byte, error) {
	var buf bytes.Buffer
	writeComment(&buf, preamble)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, &RenderError{
			AppError: model.AppError{
				Code:    "RENDER_ERROR",
				Message: "输出文档编码失败",
				Stage:   model.StageRender,
			},
			Cause: err,
		}
	}
	if err := enc.Close(); err != nil {
		return nil, &RenderError{
			AppError: model.AppError{Code: "RENDER_ERROR", Message: "输出文档编码失败", Stage: model.StageRender},
			Cause:    err,
		}
	}
	return buf.Bytes(), nil
}

func writeComment(buf *bytes.Buffer, text string) {
	text = strings.TrimRight(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			buf.WriteString("#\n")
			continue
		}
		buf.WriteString("# ")
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
}
