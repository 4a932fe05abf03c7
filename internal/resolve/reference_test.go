package resolve

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferences(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name: "definitely typed header",
			content: `// Type definitions for Atom
// Project: https://atom.io/
// Definitions by: someone

/// <reference path="../jquery/jquery.d.ts" />
/// <reference path='../q/Q.d.ts'/>
///<reference path="../node/node.d.ts">

declare module Atom {}
`,
			want: []string{"../jquery/jquery.d.ts", "../q/Q.d.ts", "../node/node.d.ts"},
		},
		{
			name: "types references are ignored",
			content: `/// <reference types="node" />
/// <reference path="./globals.d.ts" />
`,
			want: []string{"./globals.d.ts"},
		},
		{
			name: "block comment header",
			content: `/*!
 * License text
 * /// <reference path="not-a-directive.d.ts" />
 */
/// <reference path="a.d.ts" />
declare var a: any;
`,
			want: []string{"a.d.ts"},
		},
		{
			name: "directives after code are not headers",
			content: `declare var x: any;
/// <reference path="late.d.ts" />
`,
			want: nil,
		},
		{
			name:    "byte order mark",
			content: "\ufeff/// <reference path=\"bom.d.ts\" />\n",
			want:    []string{"bom.d.ts"},
		},
		{
			name:    "header line longer than a scanner buffer",
			content: "// " + strings.Repeat("x", 2<<20) + "\n/// <reference path=\"after-long.d.ts\" />\n",
			want:    []string{"after-long.d.ts"},
		},
		{
			name:    "last line without newline",
			content: "/// <reference path=\"a.d.ts\" />\r\n/// <reference path=\"b.d.ts\" />",
			want:    []string{"a.d.ts", "b.d.ts"},
		},
		{
			name:    "no references",
			content: "declare var $: any;\n",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, References([]byte(tt.content)))
		})
	}
}

func TestResolveReference(t *testing.T) {
	tests := []struct {
		from, ref string
		want      string
		ok        bool
	}{
		{"atom/atom.d.ts", "../jquery/jquery.d.ts", "jquery/jquery.d.ts", true},
		{"atom/atom.d.ts", "./atom-keymap.d.ts", "atom/atom-keymap.d.ts", true},
		{"atom/atom.d.ts", "space-pen.d.ts", "atom/space-pen.d.ts", true},
		{"root.d.ts", "other.d.ts", "other.d.ts", true},
		{"atom/atom.d.ts", "../../outside.d.ts", "", false},
		{"root.d.ts", "../outside.d.ts", "", false},
		{"atom/atom.d.ts", "/etc/passwd", "", false},
		{"atom/atom.d.ts", "..", "", false},
	}

	for _, tt := range tests {
		got, ok := resolveReference(tt.from, tt.ref)
		assert.Equal(t, tt.ok, ok, "resolveReference(%q, %q)", tt.from, tt.ref)
		assert.Equal(t, tt.want, got, "resolveReference(%q, %q)", tt.from, tt.ref)
	}
}
