package disasm

// Opcode is the first byte of an instruction.
type Opcode uint8

// Format describes the operand layout following the opcode byte.
type Format uint8

const (
	FmtNone   Format = iota // op
	FmtV                    // op v8
	FmtVV                   // op v8 v8
	FmtImm32                // op i32
	FmtImm64                // op i64
	FmtVImm32               // op v8 i32
	FmtVImm64               // op v8 i64
	FmtJmp                  // op s16
	FmtVJmp                 // op v8 s16
	FmtID                   // op id16
	FmtVID                  // op v8 id16
	FmtVVID                 // op v8 v8 id16
	FmtCall                 // op id16 n8 v8*n
)

// MaxCallArgs bounds the register list of a call instruction.
const MaxCallArgs = 4

// fixedSize is the encoded size of each format; FmtCall adds one byte per argument.
var fixedSize = [...]int{
	FmtNone:   1,
	FmtV:      2,
	FmtVV:     3,
	FmtImm32:  5,
	FmtImm64:  9,
	FmtVImm32: 6,
	FmtVImm64: 10,
	FmtJmp:    3,
	FmtVJmp:   4,
	FmtID:     3,
	FmtVID:    4,
	FmtVVID:   5,
	FmtCall:   4,
}

// IDKind names the file table an id16 operand indexes.
type IDKind uint8

const (
	IDNone IDKind = iota
	IDClass
	IDMethod
	IDField
	IDString
)

func (k IDKind) String() string {
	switch k {
	case IDClass:
		return "class"
	case IDMethod:
		return "method"
	case IDField:
		return "field"
	case IDString:
		return "string"
	}
	return ""
}

// Flow classifies how an instruction transfers control.
type Flow uint8

const (
	FlowNormal Flow = iota
	FlowJump
	FlowCondJump
	FlowReturn
	FlowThrow
)

func (f Flow) String() string {
	switch f {
	case FlowNormal:
		return "NORMAL"
	case FlowJump:
		return "JUMP"
	case FlowCondJump:
		return "COND_JUMP"
	case FlowReturn:
		return "RETURN"
	case FlowThrow:
		return "THROW"
	}
	return "?"
}

// Opcodes.
const (
	OpNop Opcode = iota
	OpMov
	OpMov64
	OpMovObj
	OpMovi
	OpMovi64
	OpLda
	OpLda64
	OpLdaObj
	OpSta
	OpSta64
	OpStaObj
	OpLdai
	OpLdai64
	OpFldai64
	OpLdaStr
	OpLdaNull
	OpLdaType
	OpAdd2
	OpSub2
	OpMul2
	OpDiv2
	OpMod2
	OpAdd264
	OpSub264
	OpDiv264
	OpFadd264
	OpFmul264
	OpAddi
	OpNeg
	OpNot
	OpI32toI64
	OpI64toI32
	OpI32toF64
	OpF64toI32
	OpCmp64
	OpFcmpl64
	OpJmp
	OpJeqz
	OpJnez
	OpJeqzObj
	OpJnezObj
	OpJeq
	OpJlt
	OpReturn
	OpReturn64
	OpReturnObj
	OpReturnVoid
	OpThrow
	OpNewobj
	OpNewarr
	OpLenarr
	OpLdarr
	OpLdarrObj
	OpStarr
	OpStarrObj
	OpLdobj
	OpStobj
	OpLdstatic
	OpStstatic
	OpCheckcast
	OpIsinstance
	OpCall
	OpCallVirt

	numOpcodes
)

// OpInfo is the static description of one opcode.
type OpInfo struct {
	Name     string
	Format   Format
	Flow     Flow
	ID       IDKind
	CanThrow bool
}

var opTable = [numOpcodes]OpInfo{
	OpNop:        {Name: "nop", Format: FmtNone},
	OpMov:        {Name: "mov", Format: FmtVV},
	OpMov64:      {Name: "mov.64", Format: FmtVV},
	OpMovObj:     {Name: "mov.obj", Format: FmtVV},
	OpMovi:       {Name: "movi", Format: FmtVImm32},
	OpMovi64:     {Name: "movi.64", Format: FmtVImm64},
	OpLda:        {Name: "lda", Format: FmtV},
	OpLda64:      {Name: "lda.64", Format: FmtV},
	OpLdaObj:     {Name: "lda.obj", Format: FmtV},
	OpSta:        {Name: "sta", Format: FmtV},
	OpSta64:      {Name: "sta.64", Format: FmtV},
	OpStaObj:     {Name: "sta.obj", Format: FmtV},
	OpLdai:       {Name: "ldai", Format: FmtImm32},
	OpLdai64:     {Name: "ldai.64", Format: FmtImm64},
	OpFldai64:    {Name: "fldai.64", Format: FmtImm64},
	OpLdaStr:     {Name: "lda.str", Format: FmtID, ID: IDString},
	OpLdaNull:    {Name: "lda.null", Format: FmtNone},
	OpLdaType:    {Name: "lda.type", Format: FmtID, ID: IDClass},
	OpAdd2:       {Name: "add2", Format: FmtV},
	OpSub2:       {Name: "sub2", Format: FmtV},
	OpMul2:       {Name: "mul2", Format: FmtV},
	OpDiv2:       {Name: "div2", Format: FmtV, CanThrow: true},
	OpMod2:       {Name: "mod2", Format: FmtV, CanThrow: true},
	OpAdd264:     {Name: "add2.64", Format: FmtV},
	OpSub264:     {Name: "sub2.64", Format: FmtV},
	OpDiv264:     {Name: "div2.64", Format: FmtV, CanThrow: true},
	OpFadd264:    {Name: "fadd2.64", Format: FmtV},
	OpFmul264:    {Name: "fmul2.64", Format: FmtV},
	OpAddi:       {Name: "addi", Format: FmtImm32},
	OpNeg:        {Name: "neg", Format: FmtNone},
	OpNot:        {Name: "not", Format: FmtNone},
	OpI32toI64:   {Name: "i32toi64", Format: FmtNone},
	OpI64toI32:   {Name: "i64toi32", Format: FmtNone},
	OpI32toF64:   {Name: "i32tof64", Format: FmtNone},
	OpF64toI32:   {Name: "f64toi32", Format: FmtNone},
	OpCmp64:      {Name: "cmp.64", Format: FmtV},
	OpFcmpl64:    {Name: "fcmpl.64", Format: FmtV},
	OpJmp:        {Name: "jmp", Format: FmtJmp, Flow: FlowJump},
	OpJeqz:       {Name: "jeqz", Format: FmtJmp, Flow: FlowCondJump},
	OpJnez:       {Name: "jnez", Format: FmtJmp, Flow: FlowCondJump},
	OpJeqzObj:    {Name: "jeqz.obj", Format: FmtJmp, Flow: FlowCondJump},
	OpJnezObj:    {Name: "jnez.obj", Format: FmtJmp, Flow: FlowCondJump},
	OpJeq:        {Name: "jeq", Format: FmtVJmp, Flow: FlowCondJump},
	OpJlt:        {Name: "jlt", Format: FmtVJmp, Flow: FlowCondJump},
	OpReturn:     {Name: "return", Format: FmtNone, Flow: FlowReturn},
	OpReturn64:   {Name: "return.64", Format: FmtNone, Flow: FlowReturn},
	OpReturnObj:  {Name: "return.obj", Format: FmtNone, Flow: FlowReturn},
	OpReturnVoid: {Name: "return.void", Format: FmtNone, Flow: FlowReturn},
	OpThrow:      {Name: "throw", Format: FmtV, Flow: FlowThrow, CanThrow: true},
	OpNewobj:     {Name: "newobj", Format: FmtVID, ID: IDClass, CanThrow: true},
	OpNewarr:     {Name: "newarr", Format: FmtVVID, ID: IDClass, CanThrow: true},
	OpLenarr:     {Name: "lenarr", Format: FmtV, CanThrow: true},
	OpLdarr:      {Name: "ldarr", Format: FmtV, CanThrow: true},
	OpLdarrObj:   {Name: "ldarr.obj", Format: FmtV, CanThrow: true},
	OpStarr:      {Name: "starr", Format: FmtVV, CanThrow: true},
	OpStarrObj:   {Name: "starr.obj", Format: FmtVV, CanThrow: true},
	OpLdobj:      {Name: "ldobj", Format: FmtVID, ID: IDField, CanThrow: true},
	OpStobj:      {Name: "stobj", Format: FmtVID, ID: IDField, CanThrow: true},
	OpLdstatic:   {Name: "ldstatic", Format: FmtID, ID: IDField, CanThrow: true},
	OpStstatic:   {Name: "ststatic", Format: FmtID, ID: IDField, CanThrow: true},
	OpCheckcast:  {Name: "checkcast", Format: FmtID, ID: IDClass, CanThrow: true},
	OpIsinstance: {Name: "isinstance", Format: FmtID, ID: IDClass},
	OpCall:       {Name: "call", Format: FmtCall, ID: IDMethod, CanThrow: true},
	OpCallVirt:   {Name: "call.virt", Format: FmtCall, ID: IDMethod, CanThrow: true},
}

var opByName = func() map[string]Opcode {
	m := make(map[string]Opcode, numOpcodes)
	for op := Opcode(0); op < numOpcodes; op++ {
		m[opTable[op].Name] = op
	}
	return m
}()

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool { return op < numOpcodes }

// Info returns the static description of op.
func (op Opcode) Info() OpInfo {
	if !op.Valid() {
		return OpInfo{Name: "?"}
	}
	return opTable[op]
}

func (op Opcode) String() string { return op.Info().Name }

// Lookup maps a mnemonic to its opcode.
func Lookup(name string) (Opcode, bool) {
	op, ok := opByName[name]
	return op, ok
}
