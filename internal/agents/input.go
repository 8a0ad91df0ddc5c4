package agents

import "strings"

// xmlEscaper escapes element text. Newlines are kept so multi-line notes stay
// readable to the model.
var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// VerificationInput builds the XML block handed to the verification stage:
//
//	<task>...</task>
//	<engineering_implementation_note>...</engineering_implementation_note>
func VerificationInput(task, note string) string {
	var buf strings.Builder
	writeElement(&buf, "task", task)
	buf.WriteString("\n")
	writeElement(&buf, "engineering_implementation_note", note)
	return buf.String()
}

func writeElement(buf *strings.Builder, name, text string) {
	buf.WriteString("<" + name + ">")
	buf.WriteString(xmlEscaper.Replace(text))
	buf.WriteString("</" + name + ">")
}
