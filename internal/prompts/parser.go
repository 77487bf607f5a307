// Package prompts parses the tagged prompt templates that drive the analysis turns.
//
// A template is plain text holding sections of the form <name>body</name>. The section named
// "role" becomes the system instruction; every other section is part of the user instruction.
package prompts

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/MegaGrindStone/ad-insights/internal/models"
)

// Section is a single tagged section of a template.
type Section struct {
	Name string
	Body string
	// Offset is the byte offset of the opening tag in the template.
	Offset int
}

// RoleSection is the name of the section holding the system instruction.
const RoleSection = "role"

var (
	// ErrNoSections is returned when a template holds no tagged section at all.
	ErrNoSections = errors.New("malformed template: no sections found")
	// ErrUnmatchedTag is returned for an opening tag without its closing tag, or a closing tag
	// without an opening one.
	ErrUnmatchedTag = errors.New("malformed template: unmatched tag")
	// ErrNestedTag is returned when a section body holds another complete section.
	ErrNestedTag = errors.New("malformed template: nested section")
	// ErrDuplicateSection is returned when two sections share the same name.
	ErrDuplicateSection = errors.New("malformed template: duplicate section")
)

var (
	openTagRe  = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9_-]*)>`)
	closeTagRe = regexp.MustCompile(`</([A-Za-z][A-Za-z0-9_-]*)>`)
)

// Sections extracts the sections of a template in source order. Bodies are trimmed of leading and
// trailing whitespace, text outside sections is ignored and tag names are matched case-sensitively.
func Sections(text string) ([]Section, error) {
	var sections []Section
	seen := make(map[string]bool)

	pos := 0
	for {
		loc := openTagRe.FindStringSubmatchIndex(text[pos:])

		gapEnd := len(text)
		if loc != nil {
			gapEnd = pos + loc[0]
		}
		if c := closeTagRe.FindStringSubmatchIndex(text[pos:gapEnd]); c != nil {
			return nil, fmt.Errorf("%w: </%s> at offset %d", ErrUnmatchedTag, text[pos+c[2]:pos+c[3]], pos+c[0])
		}
		if loc == nil {
			break
		}

		offset := pos + loc[0]
		name := text[pos+loc[2] : pos+loc[3]]
		bodyStart := pos + loc[1]

		closeTag := "</" + name + ">"
		bodyLen := strings.Index(text[bodyStart:], closeTag)
		if bodyLen < 0 {
			return nil, fmt.Errorf("%w: <%s> at offset %d", ErrUnmatchedTag, name, offset)
		}
		body := text[bodyStart : bodyStart+bodyLen]

		if inner, ok := innerSection(body); ok {
			return nil, fmt.Errorf("%w: <%s> inside <%s> at offset %d", ErrNestedTag, inner, name, offset)
		}
		if stray, at, ok := strayClose(body); ok {
			return nil, fmt.Errorf("%w: </%s> inside <%s> at offset %d", ErrUnmatchedTag, stray, name, bodyStart+at)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: <%s> at offset %d", ErrDuplicateSection, name, offset)
		}
		seen[name] = true

		sections = append(sections, Section{
			Name:   name,
			Body:   strings.TrimSpace(body),
			Offset: offset,
		})
		pos = bodyStart + bodyLen + len(closeTag)
	}

	if len(sections) == 0 {
		return nil, ErrNoSections
	}
	return sections, nil
}

// innerSection reports the name of the first complete section found in body. Tag-shaped text that
// is never closed inside body is treated as literal text.
func innerSection(body string) (string, bool) {
	for _, m := range openTagRe.FindAllStringSubmatchIndex(body, -1) {
		name := body[m[2]:m[3]]
		if strings.Contains(body[m[1]:], "</"+name+">") {
			return name, true
		}
	}
	return "", false
}

// strayClose reports the first closing tag in body that has no matching opening tag before it,
// with its offset in body.
func strayClose(body string) (string, int, bool) {
	for _, m := range closeTagRe.FindAllStringSubmatchIndex(body, -1) {
		name := body[m[2]:m[3]]
		if !strings.Contains(body[:m[0]], "<"+name+">") {
			return name, m[0], true
		}
	}
	return "", 0, false
}

// Parse turns a template into the messages it describes. The result holds a system message with
// the role body when a role section exists, followed by a user message whose text is every other
// section body joined with newlines in source order.
func Parse(text string) (models.Conversation, error) {
	sections, err := Sections(text)
	if err != nil {
		return nil, err
	}

	var role *Section
	bodies := make([]string, 0, len(sections))
	for i := range sections {
		if sections[i].Name == RoleSection {
			role = &sections[i]
			continue
		}
		bodies = append(bodies, sections[i].Body)
	}

	user := models.TextMessage(models.RoleUser, strings.Join(bodies, "\n"))
	if role == nil {
		return models.Conversation{user}, nil
	}
	return models.Conversation{
		models.TextMessage(models.RoleSystem, role.Body),
		user,
	}, nil
}
