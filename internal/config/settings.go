package config

// DefaultMemoryMinGB is the floor for per-node memory hints. Nodes that do
// not declare their own estimate are scheduled with this figure.
const DefaultMemoryMinGB = 0.01

// NonstandardReferences lists the output-space labels that designate
// subject-native reference frames rather than standard templates. The
// anatomical sub-workflow only accepts template-based spaces, so requested
// spaces are partitioned by membership in this list.
var NonstandardReferences = []string{"anat", "T1w", "run", "func", "sbref", "fsnative"}
