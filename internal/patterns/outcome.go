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

import "time"

// DecisionKind closes the set of decision points an outcome event can report
// against, so the store never has to accept a free-form, unvalidated kind.
type DecisionKind string

const (
	DecisionTriage             DecisionKind = "triage"
	DecisionSecurityAssessment DecisionKind = "security_assessment"
	DecisionProcessingRoute    DecisionKind = "processing_route"
	DecisionPostProcessing     DecisionKind = "post_processing"
)

// FileCharacteristics is the subset of a decision event that feeds the
// composite key.
type FileCharacteristics struct {
	Extension      string `json:"extension"`
	MimeType       string `json:"mimeType"`
	SizeBytes      int64  `json:"sizeBytes"`
	Classification string `json:"classification,omitempty"`
	ThreatLevel    string `json:"threatLevel,omitempty"`
}

// DecisionOutcome is the event-stream payload spec.md §6 names: a request
// fingerprint, the decision that was made, and whether it succeeded.
type DecisionOutcome struct {
	RequestFingerprint string                 `json:"requestFingerprint"`
	DecisionPoint      DecisionKind           `json:"decisionPoint"`
	Characteristics    FileCharacteristics    `json:"characteristics"`
	Decision           map[string]interface{} `json:"decision"`
	Success            bool                   `json:"success"`
	ErrorDetail        string                 `json:"errorDetail,omitempty"`
	TenantID           string                 `json:"tenantId,omitempty"`
	ObservedAt         time.Time              `json:"observedAt"`
}

// lookupRequest projects the outcome's file characteristics into the shape
// CompositeKey/Lookup expect.
func (o DecisionOutcome) lookupRequest() LookupRequest {
	return LookupRequest{
		DecisionPoint:  string(o.DecisionPoint),
		Extension:      o.Characteristics.Extension,
		MimeType:       o.Characteristics.MimeType,
		SizeBytes:      o.Characteristics.SizeBytes,
		Classification: o.Characteristics.Classification,
		ThreatLevel:    o.Characteristics.ThreatLevel,
	}
}

// LearnFromOutcome updates the store from one decision outcome event,
// matching spec.md §4.3's consumer-loop contract.
func (s *Store) LearnFromOutcome(o DecisionOutcome) {
	req := o.lookupRequest()
	if o.Success {
		s.RecordSuccess(req, string(o.DecisionPoint), o.Decision)
	} else {
		s.RecordFailure(req, string(o.DecisionPoint))
	}
}
