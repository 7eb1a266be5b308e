package docgen

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Static parts of the WordprocessingML package.
const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const documentFooter = `</w:body></w:document>`

// RenderDOCX converts a filled document tree into a minimal DOCX package.
func RenderDOCX(filled json.RawMessage) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(filled, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode filled document: %w", err)
	}

	var body strings.Builder
	writeDocumentBody(&body, doc)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/document.xml", documentHeader + body.String() + documentFooter},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("failed to create zip entry %s: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("failed to write zip entry %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize docx package: %w", err)
	}
	return buf.Bytes(), nil
}

// writeDocumentBody walks the filled tree in its natural reading order:
// title, sections, signature block, then any remaining top-level fields.
func writeDocumentBody(b *strings.Builder, doc map[string]any) {
	handled := map[string]bool{"title": true, "sections": true, "signature_block": true}

	if title, ok := doc["title"].(string); ok && title != "" {
		writeHeading(b, title, 1)
	}
	if sections, ok := doc["sections"].([]any); ok {
		for _, raw := range sections {
			section, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			writeSection(b, section)
		}
	}
	if sig, ok := doc["signature_block"].(map[string]any); ok {
		writeHeading(b, "Signatures", 2)
		writeKeyValues(b, sig)
	}

	// Remaining scalar fields render as a key-value list so nothing the
	// model produced is silently dropped.
	rest := make(map[string]any)
	for k, v := range doc {
		if !handled[k] {
			rest[k] = v
		}
	}
	writeKeyValues(b, rest)
}

func writeSection(b *strings.Builder, section map[string]any) {
	if title, ok := section["section_title"].(string); ok && title != "" {
		writeHeading(b, title, 2)
	}
	if content, ok := section["content"].(string); ok && content != "" {
		writeParagraph(b, content, false)
	}
	if clauses, ok := section["clauses"].([]any); ok {
		for i, raw := range clauses {
			clause := scalarText(raw)
			if clause == "" {
				continue
			}
			writeParagraph(b, fmt.Sprintf("%d. %s", i+1, clause), false)
		}
	}
}

func writeKeyValues(b *strings.Builder, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		text := scalarText(fields[k])
		if text == "" {
			continue
		}
		writeParagraph(b, fmt.Sprintf("%s: %s", titleizeKey(k), text), false)
	}
}

func writeHeading(b *strings.Builder, text string, level int) {
	b.WriteString(`<w:p><w:pPr><w:pStyle w:val="Heading`)
	b.WriteString(strconv.Itoa(level))
	b.WriteString(`"/></w:pPr><w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">`)
	b.WriteString(escapeXML(text))
	b.WriteString(`</w:t></w:r></w:p>`)
}

func writeParagraph(b *strings.Builder, text string, bold bool) {
	b.WriteString(`<w:p><w:r>`)
	if bold {
		b.WriteString(`<w:rPr><w:b/></w:rPr>`)
	}
	b.WriteString(`<w:t xml:space="preserve">`)
	b.WriteString(escapeXML(text))
	b.WriteString(`</w:t></w:r></w:p>`)
}

// scalarText renders a leaf JSON value as display text. Composite values
// fall back to compact JSON.
func scalarText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// titleizeKey turns a snake_case field key into a readable label.
func titleizeKey(key string) string {
	words := strings.Split(strings.ReplaceAll(key, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
