// Package ir defines the module model consumed by the dead-definition pass.
//
// Definitions and constant expressions are stored in arenas addressed by
// stable integer IDs. Removing a definition retires its arena slot; IDs held
// by other tables never move and never get reused within one module.
package ir

import (
	"fmt"
	"strings"
)

// DefID identifies a definition within a module.
type DefID uint32

// ConstID identifies a constant expression within a module.
type ConstID uint32

// GroupID identifies a linkage group within a module.
type GroupID uint32

// Invalid ID constants (zero is sentinel).
const (
	NoDef   DefID   = 0
	NoConst ConstID = 0
	NoGroup GroupID = 0
)

func (id DefID) IsValid() bool   { return id != NoDef }
func (id ConstID) IsValid() bool { return id != NoConst }
func (id GroupID) IsValid() bool { return id != NoGroup }

// Kind is the kind of a top-level definition.
type Kind int

const (
	Function Kind = iota
	GlobalVariable
	Alias
)

var kindNames = map[Kind]string{
	Function:       "function",
	GlobalVariable: "global",
	Alias:          "alias",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a kind name as written in module files.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "function", "func", "fn":
		return Function, nil
	case "global", "variable", "global_variable":
		return GlobalVariable, nil
	case "alias":
		return Alias, nil
	}
	return 0, fmt.Errorf("unknown definition kind %q", s)
}

// Linkage is the linkage class of a definition.
type Linkage int

const (
	ExternalLinkage Linkage = iota
	AvailableExternallyLinkage
	LinkOnceAnyLinkage
	LinkOnceODRLinkage
	WeakAnyLinkage
	WeakODRLinkage
	AppendingLinkage
	InternalLinkage
	PrivateLinkage
	ExternalWeakLinkage
	CommonLinkage
)

var linkageNames = []string{
	ExternalLinkage:            "external",
	AvailableExternallyLinkage: "available_externally",
	LinkOnceAnyLinkage:         "linkonce",
	LinkOnceODRLinkage:         "linkonce_odr",
	WeakAnyLinkage:             "weak",
	WeakODRLinkage:             "weak_odr",
	AppendingLinkage:           "appending",
	InternalLinkage:            "internal",
	PrivateLinkage:             "private",
	ExternalWeakLinkage:        "extern_weak",
	CommonLinkage:              "common",
}

func (l Linkage) String() string {
	if int(l) >= 0 && int(l) < len(linkageNames) {
		return linkageNames[l]
	}
	return fmt.Sprintf("linkage(%d)", int(l))
}

// ParseLinkage converts a linkage name as written in module files.
// An empty string means external linkage.
func ParseLinkage(s string) (Linkage, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ExternalLinkage, nil
	}
	for i, name := range linkageNames {
		if name == s {
			return Linkage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown linkage %q", s)
}

// IsLocal reports whether the definition is invisible outside its module.
func (l Linkage) IsLocal() bool {
	return l == InternalLinkage || l == PrivateLinkage
}

// IsDiscardableIfUnused reports whether a definition with this linkage may be
// dropped when nothing in the module references it.
func (l Linkage) IsDiscardableIfUnused() bool {
	switch l {
	case InternalLinkage, PrivateLinkage, LinkOnceAnyLinkage, LinkOnceODRLinkage, AvailableExternallyLinkage:
		return true
	}
	return false
}
