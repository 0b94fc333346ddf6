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

import (
	"fmt"
	"strings"
)

// LookupRequest carries the file characteristics a composite key is built
// from, plus the decision point the caller is asking about.
type LookupRequest struct {
	DecisionPoint  string
	Extension      string
	MimeType       string
	SizeBytes      int64
	Classification string
	ThreatLevel    string
}

// CompositeKey builds spec.md §3's `decisionPoint | ext | mimeCategory |
// sizeBucket | classification | threatLevel` key. Unset fields fall back to
// "unknown" so the key stays a stable, opaque string regardless of which
// characteristics a caller supplied.
func CompositeKey(req LookupRequest) string {
	ext := orUnknown(strings.ToLower(strings.TrimPrefix(req.Extension, ".")))
	classification := orUnknown(req.Classification)
	threat := orUnknown(req.ThreatLevel)
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		orUnknown(req.DecisionPoint), ext, mimeCategory(req.MimeType), sizeBucket(req.SizeBytes), classification, threat)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// mimeCategory reduces a full MIME type to its top-level category
// ("image/png" -> "image").
func mimeCategory(mimeType string) string {
	if mimeType == "" {
		return "unknown"
	}
	if idx := strings.IndexByte(mimeType, '/'); idx >= 0 {
		return strings.ToLower(mimeType[:idx])
	}
	return strings.ToLower(mimeType)
}

// sizeBucket coarsens a byte size into one of a handful of bands so that
// files of similar scale cluster under the same composite key.
func sizeBucket(sizeBytes int64) string {
	const (
		kib = 1024
		mib = 1024 * kib
	)
	switch {
	case sizeBytes <= 0:
		return "unknown"
	case sizeBytes < kib:
		return "tiny"
	case sizeBytes < mib:
		return "small"
	case sizeBytes < 10*mib:
		return "medium"
	case sizeBytes < 100*mib:
		return "large"
	default:
		return "xlarge"
	}
}
