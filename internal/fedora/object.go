package fedora

import (
	"encoding/xml"
	"fmt"
	"slices"
	"strings"
)

const (
	// DublinCoreNamespace is the namespace of the DC element set
	DublinCoreNamespace = "http://purl.org/dc/elements/1.1/"

	// DublinCoreDatastream is the id of the DC datastream
	DublinCoreDatastream = "DC"

	// RelsExtDatastream is the id of the external relations datastream
	RelsExtDatastream = "RELS-EXT"

	// HasModelPredicate is the RELS-EXT predicate duplicated by the profile's content models
	HasModelPredicate = "hasModel"

	pidURIPrefix = "info:fedora/"
)

// Object is a repository object with the datastreams needed for indexing
type Object struct {
	PID           string
	Label         string
	OwnerID       string
	State         string
	ContentModels []string
	Created       string
	LastModified  string
	DatastreamIDs []string

	// DublinCore maps DC element names to their values in document order
	DublinCore map[string][]string

	// Relations maps RELS-EXT predicate local names to their objects.
	// hasModel is left out.
	Relations map[string][]string
}

// URI returns the info:fedora URI of the object
func (o *Object) URI() string {
	return pidURIPrefix + o.PID
}

// HasDatastream reports whether the object lists dsid
func (o *Object) HasDatastream(dsid string) bool {
	return slices.Contains(o.DatastreamIDs, dsid)
}

// RepositoryInfo is the part of the describe response the service uses
type RepositoryInfo struct {
	Name    string `xml:"repositoryName"`
	Version string `xml:"repositoryVersion"`
	BaseURL string `xml:"repositoryBaseURL"`
}

type objectProfile struct {
	XMLName      xml.Name `xml:"objectProfile"`
	PID          string   `xml:"pid,attr"`
	Label        string   `xml:"objLabel"`
	OwnerID      string   `xml:"objOwnerId"`
	Models       []string `xml:"objModels>model"`
	CreateDate   string   `xml:"objCreateDate"`
	LastModified string   `xml:"objLastModDate"`
	State        string   `xml:"objState"`
}

type objectDatastreams struct {
	XMLName     xml.Name `xml:"objectDatastreams"`
	Datastreams []struct {
		DSID string `xml:"dsid,attr"`
	} `xml:"datastream"`
}

type anyElement struct {
	XMLName  xml.Name
	Resource string `xml:"resource,attr"`
	Value    string `xml:",chardata"`
}

type dublinCore struct {
	Elements []anyElement `xml:",any"`
}

type rdfDocument struct {
	Descriptions []struct {
		About      string       `xml:"about,attr"`
		Properties []anyElement `xml:",any"`
	} `xml:"Description"`
}

func parseRepositoryInfo(data []byte) (*RepositoryInfo, error) {
	var info RepositoryInfo
	if err := xml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse repository description: %w", err)
	}
	return &info, nil
}

func parseProfile(data []byte) (*objectProfile, error) {
	var profile objectProfile
	if err := xml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse object profile: %w", err)
	}
	return &profile, nil
}

func parseDatastreamIDs(data []byte) ([]string, error) {
	var list objectDatastreams
	if err := xml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse datastream list: %w", err)
	}
	ids := make([]string, 0, len(list.Datastreams))
	for _, ds := range list.Datastreams {
		ids = append(ids, ds.DSID)
	}
	return ids, nil
}

func parseDublinCore(data []byte) (map[string][]string, error) {
	var dc dublinCore
	if err := xml.Unmarshal(data, &dc); err != nil {
		return nil, fmt.Errorf("failed to parse %s datastream: %w", DublinCoreDatastream, err)
	}

	fields := make(map[string][]string)
	for _, el := range dc.Elements {
		if el.XMLName.Space != DublinCoreNamespace {
			continue
		}
		value := strings.TrimSpace(el.Value)
		if value == "" {
			continue
		}
		fields[el.XMLName.Local] = append(fields[el.XMLName.Local], value)
	}
	return fields, nil
}

// parseRelations reads the statements whose subject is subjectURI
func parseRelations(data []byte, subjectURI string) (map[string][]string, error) {
	var doc rdfDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s datastream: %w", RelsExtDatastream, err)
	}

	relations := make(map[string][]string)
	for _, desc := range doc.Descriptions {
		if desc.About != subjectURI {
			continue
		}
		for _, prop := range desc.Properties {
			if prop.XMLName.Local == HasModelPredicate {
				continue
			}
			value := prop.Resource
			if value == "" {
				value = strings.TrimSpace(prop.Value)
			}
			if value == "" {
				continue
			}
			relations[prop.XMLName.Local] = append(relations[prop.XMLName.Local], value)
		}
	}
	return relations, nil
}
