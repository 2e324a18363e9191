package node

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shredchain/shredger/pkg/types"
)

// clusterFile is the on-disk shape of the static cluster view: the
// validator stake table the leader schedule is computed from, and the
// contact list repair peer selection draws on. Real gossip membership
// is out of scope (spec.md names it an external ClusterInfo view); this
// is the minimal stand-in a single-file deployment needs to exercise
// the rest of the system end to end.
type clusterFile struct {
	Validators []clusterValidator `yaml:"validators"`
}

type clusterValidator struct {
	Pubkey       string `yaml:"pubkey"`
	Stake        uint64 `yaml:"stake"`
	Gossip       string `yaml:"gossip"`
	TVU          string `yaml:"tvu"`
	ServeRepair  string `yaml:"serve_repair"`
	ShredVersion uint16 `yaml:"shred_version"`
}

// LoadCluster reads a cluster view file and returns the validator stake
// table and the contact list derived from it.
func LoadCluster(path string) ([]Validator, []types.ContactInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("node: read cluster file %s: %w", path, err)
	}

	var cf clusterFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, nil, fmt.Errorf("node: parse cluster file %s: %w", path, err)
	}

	validators := make([]Validator, 0, len(cf.Validators))
	contacts := make([]types.ContactInfo, 0, len(cf.Validators))
	for _, v := range cf.Validators {
		if v.Pubkey == "" {
			return nil, nil, fmt.Errorf("node: cluster file %s: validator entry missing pubkey", path)
		}
		validators = append(validators, Validator{Pubkey: v.Pubkey, Stake: v.Stake})

		contact := types.ContactInfo{Pubkey: v.Pubkey, ShredVersion: v.ShredVersion}
		contact.Gossip = resolveOptionalUDPAddr(v.Gossip)
		contact.TVU = resolveOptionalUDPAddr(v.TVU)
		contact.ServeRepair = resolveOptionalUDPAddr(v.ServeRepair)
		contacts = append(contacts, contact)
	}

	return validators, contacts, nil
}

func resolveOptionalUDPAddr(s string) *net.UDPAddr {
	if s == "" {
		return nil
	}
	addr, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		return nil
	}
	return addr
}
