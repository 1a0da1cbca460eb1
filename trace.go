package mplsverify

import (
	"encoding/json"
	"os"
	"path"
	"sort"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// trace.go gathers per-hop records of forwarding simulations for post-run
// analysis, most usefully of the counterexample scenario of a Violated
// verdict.  Records are grouped by the scenario index that produced them.

type TraceInst struct {
	TraceStep string
	TraceType string
	TraceStr  string
}

// NameType is an entry in a dictionary created for a trace
// that maps object id numbers to a (name,type) pair
type NameType struct {
	Name string
	Type string
}

// TraceManager gathers information about an evaluation run.  By testing the
// InUse flag we can inhibit the activity of gathering a trace when we don't
// want it, while embedding calls to its methods everywhere we need them when
// it is.  Methods are safe for use from concurrent evaluation workers.
type TraceManager struct {
	// experiment uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// text name associated with each objID
	NameByID map[int]NameType `json:"namebyid" yaml:"namebyid"`

	// all trace records for this experiment, keyed by scenario index
	Traces map[int][]TraceInst `json:"traces" yaml:"traces"`

	mu sync.Mutex
}

// CreateTraceManager is a constructor.  It saves the name of the experiment
// and a flag indicating whether the trace manager is active.
func CreateTraceManager(ExpName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = ExpName
	tm.NameByID = make(map[int]NameType)  // dictionary of id code -> (name,type)
	tm.Traces = make(map[int][]TraceInst) // traces are saved by scenario index
	return tm
}

// Active tells the caller whether the Trace Manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm.InUse
}

// AddTrace stores a record under the scenario index that produced it
func (tm *TraceManager) AddTrace(scnIdx int, trace TraceInst) {
	if !tm.InUse {
		return
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	_, present := tm.Traces[scnIdx]
	if !present {
		tm.Traces[scnIdx] = make([]TraceInst, 0)
	}
	tm.Traces[scnIdx] = append(tm.Traces[scnIdx], trace)
}

// AddName is used to add an element to the id -> (name,type) dictionary for the trace file
func (tm *TraceManager) AddName(id int, name string, objDesc string) {
	if tm.InUse {
		tm.mu.Lock()
		defer tm.mu.Unlock()
		_, present := tm.NameByID[id]
		if present {
			panic("duplicated id in AddName")
		}
		tm.NameByID[id] = NameType{Name: name, Type: objDesc}
	}
}

// NoteNetwork loads the id -> (name,type) dictionary with the routers,
// interfaces, and links of the model under evaluation
func (tm *TraceManager) NoteNetwork(net *Network) {
	if !tm.InUse {
		return
	}
	for _, rtr := range net.Routers {
		tm.AddName(rtr.Number, rtr.Name, "router")
	}
	base := len(net.Routers)
	for _, lnk := range net.Links {
		tm.AddName(base+lnk.Number, lnk.String(), "link")
	}
}

// WriteToFile stores the Traces struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of
// this name.  When globalOrder is selected all records are merged into one
// list sorted by step.
func (tm *TraceManager) WriteToFile(filename string, globalOrder bool) bool {
	if !tm.InUse {
		return false
	}
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	tm.mu.Lock()
	defer tm.mu.Unlock()

	rep := tm
	if globalOrder {
		ntm := new(TraceManager)
		ntm.InUse = tm.InUse
		ntm.ExpName = tm.ExpName
		ntm.NameByID = make(map[int]NameType)
		for key, value := range tm.NameByID {
			ntm.NameByID[key] = value
		}
		ntm.Traces = make(map[int][]TraceInst)
		ntm.Traces[0] = make([]TraceInst, 0)
		for _, valueList := range tm.Traces {
			ntm.Traces[0] = append(ntm.Traces[0], valueList...)
		}

		sort.Slice(ntm.Traces[0], func(i, j int) bool {
			v1, _ := strconv.Atoi(ntm.Traces[0][i].TraceStep)
			v2, _ := strconv.Atoi(ntm.Traces[0][j].TraceStep)
			return v1 < v2
		})
		rep = ntm
	}

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(rep)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(rep, "", "\t")
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
	return true
}

// HopTrace records the state of a simulated packet just after one forwarding
// step: where it arrived, how it got there, and the label stack it carried in
type HopTrace struct {
	Step          int
	Router        string
	ArrivalIntrfc string
	DepartIntrfc  string
	Labels        []string
	Op            string
}

func (ht *HopTrace) Serialize() string {
	var bytes []byte
	var merr error

	bytes, merr = yaml.Marshal(*ht)

	if merr != nil {
		panic(merr)
	}
	return string(bytes[:])
}

// AddHopTrace creates a record of one forwarding step and stores it under
// the scenario that produced it
func AddHopTrace(tm *TraceManager, scnIdx, step int, router, arrIntrfc, depIntrfc string,
	labels []string, op string) {

	ht := new(HopTrace)
	ht.Step = step
	ht.Router = router
	ht.ArrivalIntrfc = arrIntrfc
	ht.DepartIntrfc = depIntrfc
	ht.Labels = append([]string{}, labels...)
	ht.Op = op
	htStr := ht.Serialize()

	trcInst := TraceInst{TraceStep: strconv.Itoa(step), TraceType: "hop", TraceStr: htStr}
	tm.AddTrace(scnIdx, trcInst)
}
