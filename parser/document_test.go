package parser

import (
	"strings"
	"testing"
)

const detailPage = `<html><body>
<h1 class="title">GeForce RTX 4090 (OEM)</h1>
<ul>
  <li class="feature">Цвет: Черный</li>
  <li class="feature">Серия: RTX 4090</li>
</ul>
<a class="item" href="/catalog/1">one</a>
<a class="item">no link</a>
</body></html>`

func TestHTMLDocumentSelect(t *testing.T) {
	doc, err := NewDocument(strings.NewReader(detailPage))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	features := doc.Select("li.feature")
	if len(features) != 2 {
		t.Fatalf("features = %d, want 2", len(features))
	}
	if got := Texts(features); got[1] != "Серия: RTX 4090" {
		t.Fatalf("second feature = %q", got[1])
	}

	links := doc.Select("a.item")
	if href, ok := links[0].Attr("href"); !ok || href != "/catalog/1" {
		t.Fatalf("first link href = %q/%v", href, ok)
	}
	if _, ok := links[1].Attr("href"); ok {
		t.Fatalf("second link should have no href")
	}

	if title, ok := FirstText(doc, "h1.title"); !ok || title != "GeForce RTX 4090 (OEM)" {
		t.Fatalf("title = %q/%v", title, ok)
	}
	if _, ok := FirstText(doc, "span.price"); ok {
		t.Fatalf("missing selector should report not found")
	}
}
