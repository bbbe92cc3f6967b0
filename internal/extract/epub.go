package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/net/html"
)

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Title    []string `xml:"metadata>title"`
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef  string `xml:"idref,attr"`
		Linear string `xml:"linear,attr"`
	} `xml:"spine>itemref"`
}

// EPUB extracts the chapters of an EPUB in reading order.
func (e *Extractor) EPUB(data []byte, name string) (Document, error) {
	fail := func(err error) (Document, error) {
		return Document{}, &ExtractionError{Kind: KindEPUB, Source: name, Err: err}
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fail(fmt.Errorf("opening archive: %w", err))
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var container epubContainer
	if err := decodeXML(files, "META-INF/container.xml", &container); err != nil {
		return fail(err)
	}
	if len(container.Rootfiles) == 0 {
		return fail(errors.New("container.xml lists no package"))
	}
	opfPath := container.Rootfiles[0].FullPath

	var pkg epubPackage
	if err := decodeXML(files, opfPath, &pkg); err != nil {
		return fail(err)
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		hrefs[item.ID] = item.Href
	}

	var chapters []string
	for _, ref := range pkg.Spine {
		if ref.Linear == "no" {
			continue
		}
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		if u, err := url.PathUnescape(href); err == nil {
			href = u
		}
		text, err := chapterText(files, path.Join(path.Dir(opfPath), href))
		if err != nil {
			e.logger.Warn("skipping chapter", "file", name, "chapter", href, "err", err)
			continue
		}
		if text != "" {
			chapters = append(chapters, text)
		}
	}

	var title string
	if len(pkg.Title) > 0 {
		title = pkg.Title[0]
	}
	return finish(Document{Text: strings.Join(chapters, "\n\n"), Title: title, Kind: KindEPUB}, name)
}

func readZipFile(files map[string]*zip.File, name string) ([]byte, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("%s not found in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck
	return io.ReadAll(rc)
}

func decodeXML(files map[string]*zip.File, name string, v any) error {
	data, err := readZipFile(files, name)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

func chapterText(files map[string]*zip.File, name string) (string, error) {
	data, err := readZipFile(files, name)
	if err != nil {
		return "", err
	}
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	body := findFirst(root, func(n *html.Node) bool { return n.Data == "body" })
	if body == nil {
		body = root
	}
	prune(body)
	return strings.Join(blockTexts(body), "\n\n"), nil
}
