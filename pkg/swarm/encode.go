package swarm

import "encoding/json"

func encodeStringList(list []string) (*string, error) {
	if len(list) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}
