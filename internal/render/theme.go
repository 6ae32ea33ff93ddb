package render

// Theme holds colors for graph rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors by control or call kind.
	EdgeTaken       string // conditional jump taken
	EdgeFallthrough string // conditional jump not taken
	EdgeException   string // try range to handler
	EdgeDirect      string // unconditional flow and static calls
	EdgeVirtual     string // call.virt
	EdgeUnresolved  string // callee not among the rendered methods

	// Node accents.
	HandlerFill    string // exception handler blocks
	CheckpointMark string // instructions carrying a stored context
	ErrorFill      string // methods or blocks with an ERROR
	WarningFill    string // methods or blocks with a WARNING
	ExternalText   string // external or unresolved targets

	// Cluster styling.
	ClusterBorder string
	ClusterLabel  string
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeTaken:       "#0B3D91", // NASA blue
	EdgeFallthrough: "#757575",
	EdgeException:   "#E65100", // deep orange
	EdgeDirect:      "#424242", // dark gray
	EdgeVirtual:     "#00695C", // teal
	EdgeUnresolved:  "#FC3D21", // NASA red

	HandlerFill:    "#FFF3E0", // orange 50
	CheckpointMark: "#0B3D91",
	ErrorFill:      "#FFCDD2", // red 100
	WarningFill:    "#FFF9C4", // yellow 100
	ExternalText:   "#9E9E9E",

	ClusterBorder: "#BDBDBD",
	ClusterLabel:  "#757575",
}
