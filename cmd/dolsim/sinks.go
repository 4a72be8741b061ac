package main

import "dolworld.ai/internal/sim/world"

// multiUpdateLogger fans one update entry out to every sink. Sink errors are
// ignored so a slow or broken index never stalls the world loop.
type multiUpdateLogger []world.UpdateLogger

func (m multiUpdateLogger) WriteUpdate(entry world.UpdateLogEntry) error {
	for _, l := range m {
		if l != nil {
			_ = l.WriteUpdate(entry)
		}
	}
	return nil
}

type multiLineageLogger []world.LineageLogger

func (m multiLineageLogger) WriteLineage(entry world.LineageEntry) error {
	for _, l := range m {
		if l != nil {
			_ = l.WriteLineage(entry)
		}
	}
	return nil
}
