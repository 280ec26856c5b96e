package envelope

import (
	"strings"

	"github.com/beevik/etree"
)

// SceneLinks returns the target scene UUIDs referenced by scene-link
// elements in svg, in document order and without duplicates. Link
// elements carry krb:class="SceneLink" and krb:target="<name>:<uuid>".
// Unreadable SVG yields no links.
func SceneLinks(svg string) []string {
	if svg == "" {
		return nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(svg); err != nil || doc.Root() == nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if el.SelectAttrValue("krb:class", "") == "SceneLink" {
			target := el.SelectAttrValue("krb:target", "")
			if i := strings.LastIndex(target, ":"); i >= 0 {
				target = target[i+1:]
			}
			target = strings.TrimSpace(target)
			if target != "" && !seen[target] {
				seen[target] = true
				links = append(links, target)
			}
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	walk(doc.Root())
	return links
}
