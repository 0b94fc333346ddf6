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

// Package tenant carries the identifiers that isolate every inbound request
// as it flows through the core: company/app/user, a correlation request ID,
// and the provenance of the context. It is the basis of isolation, rate
// limiting, and audit for every downstream call the substrate makes.
package tenant

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Source describes how a Context was established.
type Source string

const (
	SourceToken   Source = "token"
	SourceHeaders Source = "headers"
	SourceSystem  Source = "system"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// Context carries company/app/user/request identifiers through every call.
// CompanyID and AppID are always present on any Context that reaches the
// core; RequestID is unique per inbound request and propagates unchanged
// through every downstream call made on its behalf.
type Context struct {
	CompanyID   string
	AppID       string
	UserID      string
	UserEmail   string
	UserName    string
	Roles       []string
	Permissions []string
	SessionID   string
	RequestID   string
	Timestamp   time.Time
	Source      Source
}

// New validates and constructs a tenant Context, assigning a fresh RequestID
// when one is not supplied.
func New(companyID, appID string, source Source, opts ...Option) (*Context, error) {
	if !identifierPattern.MatchString(companyID) {
		return nil, fmt.Errorf("tenant: invalid companyId %q", companyID)
	}
	if !identifierPattern.MatchString(appID) {
		return nil, fmt.Errorf("tenant: invalid appId %q", appID)
	}

	tc := &Context{
		CompanyID: companyID,
		AppID:     appID,
		RequestID: uuid.NewString(),
		Timestamp: time.Now(),
		Source:    source,
	}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.RequestID == "" {
		tc.RequestID = uuid.NewString()
	}
	if !identifierPattern.MatchString(tc.RequestID) {
		return nil, fmt.Errorf("tenant: invalid requestId %q", tc.RequestID)
	}
	return tc, nil
}

// Option customizes optional tenant Context fields at construction.
type Option func(*Context)

func WithUserID(id string) Option       { return func(tc *Context) { tc.UserID = id } }
func WithUserEmail(email string) Option { return func(tc *Context) { tc.UserEmail = email } }
func WithUserName(name string) Option   { return func(tc *Context) { tc.UserName = name } }
func WithSessionID(id string) Option    { return func(tc *Context) { tc.SessionID = id } }
func WithRequestID(id string) Option    { return func(tc *Context) { tc.RequestID = id } }
func WithRoles(roles ...string) Option  { return func(tc *Context) { tc.Roles = roles } }
func WithPermissions(perms ...string) Option {
	return func(tc *Context) { tc.Permissions = perms }
}

type ctxKey struct{}

// Inject attaches tc to ctx so downstream layers can retrieve it without it
// being threaded explicitly through every function signature.
func Inject(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext retrieves the tenant Context injected earlier in the call
// chain, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(*Context)
	return tc, ok
}

// HasPermission reports whether the tenant carries the named permission.
func (tc *Context) HasPermission(permission string) bool {
	for _, p := range tc.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// HasRole reports whether the tenant carries the named role.
func (tc *Context) HasRole(role string) bool {
	for _, r := range tc.Roles {
		if r == role {
			return true
		}
	}
	return false
}
