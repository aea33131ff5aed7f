// Package io provides JSON import and export for designs, placement moves and
// resolved access points.
//
// # Design Format
//
// A design file is the JSON form of [db.Design]: the technology (layers and
// via defs, bottom layer first), track patterns, masters, placed instances,
// nets with route guides, and block terminals. Objects refer to each other by
// their index in the owning array:
//
//	{
//	  "name": "top",
//	  "tech": {"dbu": 1000, "layers": [...], "vias": [...]},
//	  "die": {"XLo": 0, "YLo": 0, "XHi": 4000, "YHi": 3000},
//	  "tracks": [{"layer": 0, "dir": 0, "start": 100, "step": 200, "count": 15}],
//	  "masters": [{"name": "INV", ...}],
//	  "instances": [{"name": "u1", "master": 0, "origin": {"X": 0, "Y": 0}, "orient": "N"}],
//	  "nets": [{"name": "n1", "terms": [{"inst": 0, "term": 1}]}]
//	}
//
// [ReadDesign] validates handles and builds the connectivity index, so the
// returned design is ready for planning.
//
// # Moves
//
// A move file lists placement changes by instance name:
//
//	[
//	  {"inst": "u3", "origin": {"X": 800, "Y": 0}, "orient": "N"},
//	  {"inst": "u7", "remove": true}
//	]
//
// # Assignments
//
// [WriteAssignments] exports resolved access points with names instead of
// handles, one object per pin, so the output can be consumed without the
// design file.
//
// [db.Design]: github.com/matzehuels/pinaccess/pkg/db.Design
package io
