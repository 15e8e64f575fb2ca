package sources

import (
	"reflect"
	"testing"

	"github.com/John-Robertt/submerge/internal/model"
)

func TestParse(t *testing.T) {
	text := "# Airport A (main)\r\n" +
		"https://a.example.com/sub\n" +
		"https://a.example.com/backup\n" +
		"\n" +
		"#HK\n" +
		"\n" +
		"https://b.example.com/sub\n" +
		"## 香港节点，备用\n" +
		"https://c.example.com/sub?token=1\n"
	got := Parse(text)
	want := []model.SourceEntry{
		{URL: "https://a.example.com/sub", Label: "Airport"},
		{URL: "https://a.example.com/backup"},
		{URL: "https://b.example.com/sub"},
		{URL: "https://c.example.com/sub?token=1", Label: "香港节点"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse=%+v\nwant %+v", got, want)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"# Home", "Home"},
		{"#my_air-port: extra", "my_air-port"},
		{"#   ", ""},
		{"# abcdefghijklmnopqrstuvwxyz", "abcdefghijklmnopqrst"},
		{"# 一二三四五六七八九十一二三四五六七八九十一二", "一二三四五六七八九十一二三四五六七八九十"},
		{"# a.b", "a"},
	}
	for _, tt := range tests {
		if got := Label(tt.in); got != tt.want {
			t.Fatalf("Label(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLabels(t *testing.T) {
	entries := []model.SourceEntry{{Label: "A"}, {Label: ""}, {Label: "B"}, {Label: "A"}}
	if got := Labels(entries); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("Labels=%v", got)
	}
}
