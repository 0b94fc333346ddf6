/*
Copyright 2026 The NexusForge Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package patterns

import "testing"

func TestCompositeKey_Stable(t *testing.T) {
	a := CompositeKey(LookupRequest{DecisionPoint: "triage", Extension: ".PDF", MimeType: "application/pdf", SizeBytes: 2048, Classification: "doc", ThreatLevel: "low"})
	b := CompositeKey(LookupRequest{DecisionPoint: "triage", Extension: "pdf", MimeType: "application/pdf", SizeBytes: 2048, Classification: "doc", ThreatLevel: "low"})
	if a != b {
		t.Errorf("expected case/dot-insensitive extension match, got %q vs %q", a, b)
	}
}

func TestCompositeKey_UnknownFallback(t *testing.T) {
	key := CompositeKey(LookupRequest{DecisionPoint: "triage"})
	want := "triage|unknown|unknown|unknown|unknown|unknown"
	if key != want {
		t.Errorf("CompositeKey() = %q, want %q", key, want)
	}
}

func TestSizeBucket(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{0, "unknown"},
		{500, "tiny"},
		{5000, "small"},
		{5 * 1024 * 1024, "medium"},
		{50 * 1024 * 1024, "large"},
		{500 * 1024 * 1024, "xlarge"},
	}
	for _, c := range cases {
		if got := sizeBucket(c.size); got != c.want {
			t.Errorf("sizeBucket(%d) = %q, want %q", c.size, got, c.want)
		}
	}
}

func TestMimeCategory(t *testing.T) {
	if got := mimeCategory("image/png"); got != "image" {
		t.Errorf("mimeCategory() = %q, want image", got)
	}
	if got := mimeCategory(""); got != "unknown" {
		t.Errorf("mimeCategory(\"\") = %q, want unknown", got)
	}
}
