// Copyright 2025 The contributors of Ollamabridge.
// This file is part of Ollamabridge, a chat gateway for Ollama, under the MIT License.
// SPDX-License-Identifier: MIT

package bridge

import "github.com/tidwall/gjson"

// ExtractContent searches a loosely-shaped JSON document for the answer
// text. Ollama does not pin the response shape from this gateway's point
// of view, so this is a tolerant depth-first search, not schema parsing.
//
// Precedence inside an object: a string "content" key wins, then a string
// "message.content", then the first match found while recursing into the
// entries in document order. Array elements are visited in order. A bare
// string leaf is not a candidate on its own. The first match wins, even
// when it is the empty string.
func ExtractContent(v gjson.Result) (string, bool) {
	switch {
	case v.IsObject():
		if c := v.Get("content"); c.Type == gjson.String {
			return c.String(), true
		}
		if m := v.Get("message"); m.IsObject() {
			if c := m.Get("content"); c.Type == gjson.String {
				return c.String(), true
			}
		}
		return extractChildren(v)

	case v.IsArray():
		return extractChildren(v)

	default:
		return "", false
	}
}

func extractChildren(v gjson.Result) (string, bool) {
	var content string
	var found bool
	v.ForEach(func(_, child gjson.Result) bool {
		content, found = ExtractContent(child)
		return !found
	})
	return content, found
}
