// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package wire

import (
	"encoding/json"
	"fmt"
)

// wireCommand mirrors serde's default externally-tagged enum representation:
// {"SubmitData": {...}} or {"Exit": {...}}, exactly one key present.
type wireCommand struct {
	SubmitData *wireSubmitData `json:"SubmitData,omitempty"`
	Exit       *wireExit       `json:"Exit,omitempty"`
}

type wireSubmitData struct {
	CollectorID CollectorID `json:"collector_id"`
	Metrics     Metrics     `json:"metrics"`
}

type wireExit struct {
	CollectorID CollectorID `json:"collector_id"`
}

func marshalCommand(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case SubmitData:
		return json.Marshal(wireCommand{SubmitData: &wireSubmitData{CollectorID: c.CollectorID, Metrics: c.Metrics}})
	case Exit:
		return json.Marshal(wireCommand{Exit: &wireExit{CollectorID: c.CollectorID}})
	default:
		return nil, fmt.Errorf("wire: unknown command type %T", cmd)
	}
}

func unmarshalCommand(payload []byte) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	switch {
	case w.SubmitData != nil:
		return SubmitData{CollectorID: w.SubmitData.CollectorID, Metrics: w.SubmitData.Metrics}, nil
	case w.Exit != nil:
		return Exit{CollectorID: w.Exit.CollectorID}, nil
	default:
		return nil, fmt.Errorf("%w: no recognized command variant", ErrBadPayload)
	}
}
