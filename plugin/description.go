package plugin

import "strings"

// GroupDescription renders a Markdown card description: the group's URL,
// then the event body as an indented code block.
func GroupDescription(group Group, event Event) string {
	output := []string{group.Permalink}

	if event.Body != "" {
		lines := bodyLines(event.Body)
		for i, line := range lines {
			lines[i] = "    " + line
		}
		output = append(output, "", strings.Join(lines, "\n"))
	}
	return strings.Join(output, "\n")
}

// bodyLines splits on \n, \r\n and bare \r. A single terminating line break
// does not start a new line; blank lines elsewhere are kept.
func bodyLines(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	body = strings.TrimSuffix(body, "\n")
	return strings.Split(body, "\n")
}
