package soap

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// service is the part of a WSDL 1.1 document the HTTP driver needs.
type service struct {
	Namespace string
	Endpoint  string
	Actions   map[string]string // operation -> soapAction
}

// Local names only: soap:address and soap12:address both match "address".
type wsdlDefinitions struct {
	TargetNamespace string `xml:"targetNamespace,attr"`
	Services        []struct {
		Ports []struct {
			Address struct {
				Location string `xml:"location,attr"`
			} `xml:"address"`
		} `xml:"port"`
	} `xml:"service"`
	Bindings []struct {
		Operations []struct {
			Name string `xml:"name,attr"`
			SOAP struct {
				Action string `xml:"soapAction,attr"`
			} `xml:"operation"`
		} `xml:"operation"`
	} `xml:"binding"`
}

func parseWSDL(r io.Reader) (service, error) {
	var defs wsdlDefinitions
	if err := xml.NewDecoder(r).Decode(&defs); err != nil {
		return service{}, err
	}
	svc := service{Namespace: defs.TargetNamespace, Actions: make(map[string]string)}

	for _, s := range defs.Services {
		for _, p := range s.Ports {
			loc := strings.TrimSpace(p.Address.Location)
			if loc == "" {
				continue
			}
			// first port wins unless a later one is https
			if svc.Endpoint == "" || (!strings.HasPrefix(svc.Endpoint, "https://") && strings.HasPrefix(loc, "https://")) {
				svc.Endpoint = loc
			}
		}
	}
	for _, b := range defs.Bindings {
		for _, op := range b.Operations {
			if _, seen := svc.Actions[op.Name]; !seen && op.Name != "" {
				svc.Actions[op.Name] = op.SOAP.Action
			}
		}
	}
	if svc.Endpoint == "" {
		return service{}, errors.New("wsdl declares no service address")
	}
	return svc, nil
}
