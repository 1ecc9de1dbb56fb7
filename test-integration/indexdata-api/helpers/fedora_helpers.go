package helpers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// FedoraObject describes an object served by the fake repository
type FedoraObject struct {
	PID           string
	Label         string
	Owner         string
	State         string
	ContentModels []string
	DublinCore    map[string][]string
}

// FakeFedora is an in-memory Fedora 3 REST endpoint
type FakeFedora struct {
	*httptest.Server

	mu       sync.RWMutex
	objects  map[string]FedoraObject
	requests int
}

// NewFakeFedora starts a fake repository serving objs under /fedora/
func NewFakeFedora(objs ...FedoraObject) *FakeFedora {
	f := &FakeFedora{objects: make(map[string]FedoraObject)}
	for _, o := range objs {
		f.objects[o.PID] = o
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

// BaseURL returns the repository root to put in fedora.baseUrl
func (f *FakeFedora) BaseURL() string {
	return f.URL + "/fedora/"
}

// Requests returns how many object profile requests were served
func (f *FakeFedora) Requests() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.requests
}

func (f *FakeFedora) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/fedora/")

	if path == "describe" {
		writeXML(w, `<fedoraRepository xmlns="http://www.fedora.info/definitions/1/0/access/">
  <repositoryName>Fake Fedora</repositoryName>
  <repositoryBaseURL>`+f.BaseURL()+`</repositoryBaseURL>
  <repositoryVersion>3.8.1</repositoryVersion>
</fedoraRepository>`)
		return
	}

	rest, ok := strings.CutPrefix(path, "objects/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	pid, sub, _ := strings.Cut(rest, "/")

	f.mu.Lock()
	obj, found := f.objects[pid]
	if sub == "" {
		f.requests++
	}
	f.mu.Unlock()

	if !found {
		http.Error(w, "Object not found in low-level storage: "+pid, http.StatusNotFound)
		return
	}

	switch sub {
	case "":
		writeXML(w, profileXML(obj))
	case "datastreams":
		writeXML(w, `<objectDatastreams xmlns="http://www.fedora.info/definitions/1/0/access/" pid="`+pid+`">
  <datastream dsid="DC" label="Dublin Core" mimeType="text/xml"/>
</objectDatastreams>`)
	case "datastreams/DC/content":
		writeXML(w, dublinCoreXML(obj))
	default:
		http.NotFound(w, r)
	}
}

func profileXML(o FedoraObject) string {
	var models strings.Builder
	for _, m := range o.ContentModels {
		fmt.Fprintf(&models, "<model>%s</model>", m)
	}
	return fmt.Sprintf(`<objectProfile xmlns="http://www.fedora.info/definitions/1/0/access/" pid="%s">
  <objLabel>%s</objLabel>
  <objOwnerId>%s</objOwnerId>
  <objModels>%s</objModels>
  <objCreateDate>2011-03-04T15:21:04.142Z</objCreateDate>
  <objLastModDate>2011-03-05T09:00:00.000Z</objLastModDate>
  <objState>%s</objState>
</objectProfile>`, o.PID, o.Label, o.Owner, models.String(), o.State)
}

func dublinCoreXML(o FedoraObject) string {
	var fields strings.Builder
	for name, values := range o.DublinCore {
		for _, v := range values {
			fmt.Fprintf(&fields, "<dc:%s>%s</dc:%s>", name, v, name)
		}
	}
	return `<oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" xmlns:dc="http://purl.org/dc/elements/1.1/">` +
		fields.String() + `</oai_dc:dc>`
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(body))
}
