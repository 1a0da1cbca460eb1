package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iti/mplsverify"
)

// exit codes, one per failure class so scripted callers can tell a parse
// problem from a pattern problem from resource exhaustion
const (
	exitOK       = 0
	exitUsage    = 1
	exitParse    = 2
	exitPattern  = 3
	exitOverflow = 4
	exitTimeout  = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgFile := flag.String("config", "", "evaluation config file (yaml or json)")
	workers := flag.Int("workers", -1, "evaluation pool size (0 = one per CPU)")
	maxHops := flag.Int("maxhops", -1, "per-simulation hop cap")
	scenarioCap := flag.Int("scenariocap", -1, "scenario count above which evaluation refuses or samples")
	sampleCount := flag.Int("samples", -1, "sample this many scenarios instead of refusing when over cap")
	timeout := flag.Duration("timeout", 0, "overall evaluation timeout (0 = none)")
	ingress := flag.String("ingress", "", "ingress router (default: first literal of the pattern)")
	ingressIntrfc := flag.String("ingress-intrfc", "", "ingress interface (default: first interface of the ingress router)")
	egress := flag.String("egress", "", "egress router (default: last literal of the pattern)")
	labels := flag.String("labels", "", "comma-separated initial label stack, outermost first")
	traceFile := flag.String("trace", "", "write per-hop trace records to this file (yaml or json)")
	encodeFile := flag.String("encode", "", "write the graph encoding to this file (yaml or json)")
	logLevel := flag.String("loglevel", "", "log level: debug, info, warn, error")
	logFormat := flag.String("logformat", "", "log format: text or json")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] topology.xml routing.xml \"pattern\" k\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 4 {
		flag.Usage()
		return exitUsage
	}
	topoFile := flag.Arg(0)
	routingFile := flag.Arg(1)
	pattern := flag.Arg(2)
	k, err := strconv.Atoi(flag.Arg(3))
	if err != nil || k < 0 {
		fmt.Fprintf(os.Stderr, "k must be a non-negative integer, got %q\n", flag.Arg(3))
		return exitUsage
	}

	// file config first, then flag overrides
	cfg := mplsverify.DefaultEvalConfig()
	if len(*cfgFile) > 0 {
		useYAML := strings.HasSuffix(*cfgFile, ".yaml") || strings.HasSuffix(*cfgFile, ".yml")
		cfg, err = mplsverify.ReadEvalConfig(*cfgFile, useYAML, []byte{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			return exitUsage
		}
	}
	if *workers >= 0 {
		cfg.Workers = *workers
	}
	if *maxHops >= 0 {
		cfg.MaxHops = *maxHops
	}
	if *scenarioCap >= 0 {
		cfg.ScenarioCap = *scenarioCap
	}
	if *sampleCount >= 0 {
		cfg.SampleCount = *sampleCount
	}
	if *timeout > 0 {
		cfg.TimeoutSecs = timeout.Seconds()
	}
	if len(*traceFile) > 0 {
		cfg.TraceFile = *traceFile
	}
	if len(*encodeFile) > 0 {
		cfg.EncodeFile = *encodeFile
	}
	if len(*logLevel) > 0 {
		cfg.LogLevel = *logLevel
	}
	if len(*logFormat) > 0 {
		cfg.LogFormat = *logFormat
	}

	log := mplsverify.CreateLogger(cfg.LogLevel, cfg.LogFormat)

	net, err := mplsverify.ReadNetwork(topoFile, routingFile)
	if err != nil {
		log.Error("cannot build network model", "err", err.Error())
		return exitParse
	}
	log.Info("network model built", "routers", len(net.Routers), "links", len(net.Links))

	query, err := mplsverify.CompileQuery(pattern)
	if err != nil {
		log.Error("cannot compile query", "err", err.Error())
		return exitPattern
	}

	pckt, ok := packetSpec(net, query, *ingress, *ingressIntrfc, *egress, *labels)
	if !ok {
		return exitUsage
	}
	log.Info("packet specification", "ingress", pckt.Ingress,
		"intrfc", pckt.IngressIntrfc, "egress", pckt.Egress, "labels", pckt.Labels)

	if len(cfg.EncodeFile) > 0 {
		gd := mplsverify.EncodeGraph(net, query, pckt, k)
		err = gd.WriteToFile(cfg.EncodeFile)
		if err != nil {
			log.Error("cannot write graph encoding", "err", err.Error())
			return exitUsage
		}
		log.Info("graph encoding written", "file", cfg.EncodeFile,
			"nodes", len(gd.Nodes), "edges", len(gd.Edges))
	}

	tm := mplsverify.CreateTraceManager(net.Name, len(cfg.TraceFile) > 0)
	tm.NoteNetwork(net)

	ev := mplsverify.CreateEvaluator(net, query, pckt, k)
	ev.Workers = cfg.Workers
	ev.MaxHops = cfg.MaxHops
	ev.ScenarioCap = cfg.ScenarioCap
	ev.SampleCount = cfg.SampleCount
	ev.Log = log
	ev.TraceMgr = tm

	ctx := context.Background()
	if cfg.TimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeoutSecs*float64(time.Second)))
		defer cancel()
	}

	verdict, err := ev.Evaluate(ctx)
	if err != nil {
		var overflow *mplsverify.EnumerationOverflowError
		if errors.As(err, &overflow) {
			log.Error("scenario enumeration over cap",
				"count", overflow.Count, "cap", overflow.Cap)
			return exitOverflow
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			log.Error("evaluation timed out", "err", err.Error())
			return exitTimeout
		}
		log.Error("evaluation failed", "err", err.Error())
		return exitUsage
	}

	if len(cfg.TraceFile) > 0 {
		tm.WriteToFile(cfg.TraceFile, false)
		log.Info("trace written", "file", cfg.TraceFile)
	}

	fmt.Println(verdict.String())
	if verdict.Counterexample != nil {
		cx := verdict.Counterexample
		if cx.EgressReachable {
			fmt.Printf("egress remained physically reachable (%d hops): label configuration fault\n",
				cx.PhysicalHops)
		} else {
			fmt.Println("egress physically unreachable under this failure set")
		}
	}
	return exitOK
}

// packetSpec fills in the parts of the ingress specification the caller left
// to defaults: ingress from the pattern's first literal, egress from its
// last, and the ingress interface from the router's first port
func packetSpec(net *mplsverify.Network, query *mplsverify.PathQuery,
	ingress, ingressIntrfc, egress, labels string) (mplsverify.PcktSpec, bool) {

	pckt := mplsverify.PcktSpec{Ingress: ingress, IngressIntrfc: ingressIntrfc, Egress: egress}

	lits := query.Literals()
	if len(pckt.Ingress) == 0 {
		if len(lits) == 0 {
			fmt.Fprintln(os.Stderr, "pattern has no literals; -ingress is required")
			return pckt, false
		}
		pckt.Ingress = lits[0]
	}
	if len(pckt.Egress) == 0 && len(lits) > 0 {
		pckt.Egress = lits[len(lits)-1]
	}

	rtr := net.RouterByName(pckt.Ingress)
	if rtr == nil {
		fmt.Fprintf(os.Stderr, "ingress router %q not in topology\n", pckt.Ingress)
		return pckt, false
	}
	if len(pckt.IngressIntrfc) == 0 {
		if len(rtr.Intrfcs) == 0 {
			fmt.Fprintf(os.Stderr, "ingress router %q has no interfaces\n", pckt.Ingress)
			return pckt, false
		}
		pckt.IngressIntrfc = rtr.Intrfcs[0].Name
	}

	if len(labels) > 0 {
		pckt.Labels = strings.Split(labels, ",")
	}

	return pckt, true
}
