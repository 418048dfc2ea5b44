package model

type DisableResult struct {
	Attempted bool   `json:"attempted"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

// DisableReport maps a channel key (backmarket, refurbed, cdiscount, magento) to its result.
type DisableReport map[string]DisableResult

func (r DisableReport) Failed() []string {
	var out []string
	for _, s := range Sources {
		if res, ok := r[s.Key()]; ok && res.Attempted && !res.Success {
			out = append(out, s.Key())
		}
	}
	return out
}
