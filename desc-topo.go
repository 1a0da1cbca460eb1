package mplsverify

// file desc-topo.go holds structs, methods, and data structures supporting
// the description of MPLS network topologies and their label-forwarding
// configuration.  The on-disk input format is the P-Rex style XML pair
// (topology document, routing document); once read, a description can be
// re-serialized to yaml or json for archiving with experiment results.

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// An IntrfcDesc defines a serializable description of a network interface.
// The interface name needs to be unique only among the interfaces of the
// router that holds it.
type IntrfcDesc struct {
	// name for interface, unique among interfaces on the same router
	Name string `xml:"name,attr" json:"name" yaml:"name"`
}

// A RouterDesc describes a router in the topology document, which is just
// a globally unique name and the list of its interfaces
type RouterDesc struct {
	Name string `xml:"name,attr" json:"name" yaml:"name"`

	// list of descriptions of the interfaces that are the ports of the router
	Interfaces []IntrfcDesc `xml:"interfaces>interface" json:"interfaces" yaml:"interfaces"`
}

// A LinkSideDesc names one endpoint of a link, an (router, interface) pair
type LinkSideDesc struct {
	Router string `xml:"router,attr" json:"router" yaml:"router"`
	Intrfc string `xml:"interface,attr" json:"interface" yaml:"interface"`
}

// A LinkDesc describes an undirected physical connection between
// two interfaces on two distinct routers
type LinkDesc struct {
	Sides []LinkSideDesc `xml:"sides>shared_interface" json:"sides" yaml:"sides"`
}

// A TopoDesc is the deserialized form of the complete topology document
type TopoDesc struct {
	XMLName xml.Name     `xml:"network" json:"-" yaml:"-"`
	Name    string       `xml:"name,attr" json:"name" yaml:"name"`
	Routers []RouterDesc `xml:"routers>router" json:"routers" yaml:"routers"`
	Links   []LinkDesc   `xml:"links>link" json:"links" yaml:"links"`
}

// An ActionDesc describes one label-stack operation of a forwarding rule.
// Type is one of "push", "swap", "pop".  Arg carries the label pushed or
// swapped in, and is empty for "pop".
type ActionDesc struct {
	Type string `xml:"type,attr" json:"type" yaml:"type"`
	Arg  string `xml:"arg,attr,omitempty" json:"arg,omitempty" yaml:"arg,omitempty"`
}

// A RuleDesc describes the body of a forwarding rule: the ordered label-stack
// operations to apply and the interface out of which the packet departs
type RuleDesc struct {
	To      string       `xml:"to,attr" json:"to" yaml:"to"`
	Weight  int          `xml:"weight,attr,omitempty" json:"weight,omitempty" yaml:"weight,omitempty"`
	Actions []ActionDesc `xml:"actions>action" json:"actions" yaml:"actions"`
}

// A TEGroupDesc groups alternative rules for the same destination.  Like the
// tooling this format comes from, only the first rule of the first group is
// active; the rest are carried through for re-serialization.
type TEGroupDesc struct {
	Rules []RuleDesc `xml:"rule" json:"rules" yaml:"rules"`
}

// A DestDesc keys forwarding behavior by (arrival interface, top-of-stack label).
// An empty Label means the rule matches a packet whose label stack is empty,
// which is how label-switched paths are entered.
type DestDesc struct {
	From     string        `xml:"from,attr" json:"from" yaml:"from"`
	Label    string        `xml:"label,attr,omitempty" json:"label,omitempty" yaml:"label,omitempty"`
	TEGroups []TEGroupDesc `xml:"te-group" json:"tegroups" yaml:"tegroups"`
}

// A RtgTblDesc holds the forwarding table of one router
type RtgTblDesc struct {
	// name of the router the table belongs to
	Router string `xml:"for,attr" json:"for" yaml:"for"`

	Destinations []DestDesc `xml:"destinations>destination" json:"destinations" yaml:"destinations"`
}

// A RoutingDesc is the deserialized form of the complete routing document
type RoutingDesc struct {
	XMLName xml.Name     `xml:"routes" json:"-" yaml:"-"`
	Tables  []RtgTblDesc `xml:"routings>routing" json:"routings" yaml:"routings"`
}

// ReadTopoDesc deserializes a byte slice holding an XML representation of a
// TopoDesc struct.  If the input argument of dict (those bytes) is empty, the
// file whose name is given is read to acquire them.  A deserialized
// representation is returned, or a MalformedInputError if the document cannot
// be parsed.
func ReadTopoDesc(filename string, dict []byte) (*TopoDesc, error) {
	var err error

	// if the dict slice of bytes is empty we get them from the file whose name is an argument
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := TopoDesc{}
	err = xml.Unmarshal(dict, &example)
	if err != nil {
		return nil, &MalformedInputError{Doc: "topology", Field: filename, Detail: err.Error()}
	}

	return &example, nil
}

// ReadRoutingDesc deserializes a byte slice holding an XML representation of
// a RoutingDesc struct, reading the named file when the slice is empty
func ReadRoutingDesc(filename string, dict []byte) (*RoutingDesc, error) {
	var err error

	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := RoutingDesc{}
	err = xml.Unmarshal(dict, &example)
	if err != nil {
		return nil, &MalformedInputError{Doc: "routing", Field: filename, Detail: err.Error()}
	}

	return &example, nil
}

// writeDescFile stores a serializable struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func writeDescFile(filename string, rep any) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(rep)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(rep, "", "\t")
	} else {
		return fmt.Errorf("unrecognized file extension %s", pathExt)
	}

	if merr != nil {
		panic(merr)
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		panic(cerr)
	}
	_, werr := f.WriteString(string(bytes[:]))
	if werr != nil {
		panic(werr)
	}
	err := f.Close()
	if err != nil {
		panic(err)
	}

	return werr
}

// WriteToFile stores the TopoDesc struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (td *TopoDesc) WriteToFile(filename string) error {
	return writeDescFile(filename, *td)
}

// WriteToFile stores the RoutingDesc struct to the file whose name is given
func (rd *RoutingDesc) WriteToFile(filename string) error {
	return writeDescFile(filename, *rd)
}

// AddRouter appends a router description, creating interface descriptions
// from the offered interface names
func (td *TopoDesc) AddRouter(name string, intrfcs []string) {
	rtr := RouterDesc{Name: name}
	for _, intrfcName := range intrfcs {
		rtr.Interfaces = append(rtr.Interfaces, IntrfcDesc{Name: intrfcName})
	}
	td.Routers = append(td.Routers, rtr)
}

// AddLink appends a link description joining the two named (router, interface) pairs
func (td *TopoDesc) AddLink(rtr1, intrfc1, rtr2, intrfc2 string) {
	lnk := LinkDesc{Sides: []LinkSideDesc{
		{Router: rtr1, Intrfc: intrfc1},
		{Router: rtr2, Intrfc: intrfc2},
	}}
	td.Links = append(td.Links, lnk)
}

// AddRule appends a single-rule destination entry to the table of the named
// router, creating that table first if no rules have been given for it yet
func (rd *RoutingDesc) AddRule(rtr, fromIntrfc, label, toIntrfc string, actions []ActionDesc) {
	var tbl *RtgTblDesc
	for idx := range rd.Tables {
		if rd.Tables[idx].Router == rtr {
			tbl = &rd.Tables[idx]
			break
		}
	}
	if tbl == nil {
		rd.Tables = append(rd.Tables, RtgTblDesc{Router: rtr})
		tbl = &rd.Tables[len(rd.Tables)-1]
	}

	dest := DestDesc{From: fromIntrfc, Label: label}
	dest.TEGroups = append(dest.TEGroups, TEGroupDesc{
		Rules: []RuleDesc{{To: toIntrfc, Actions: actions}},
	})
	tbl.Destinations = append(tbl.Destinations, dest)
}
