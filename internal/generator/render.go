package generator

import (
	"fmt"

	"defdoc/internal/registry"
)

// RenderBlock formats the "Defined In" doc block for def. Every line starts
// with indent. Versions and links keep the order they were recorded in.
func RenderBlock(def *registry.Definition, indent string) []string {
	out := []string{
		indent + "/// # Defined In",
		indent + "///",
	}
	for _, vl := range def.Links {
		out = append(out, fmt.Sprintf("%s/// * **%s:**", indent, vl.Label))
		for i, l := range vl.Links {
			line := fmt.Sprintf("%s///     [%s](%s)", indent, l.Category, l.URL)
			if i < len(vl.Links)-1 {
				line += " |"
			}
			out = append(out, line)
		}
	}
	return out
}
