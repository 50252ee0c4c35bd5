package activity

// maxClassifiableInstructions bounds the transactions the selection heuristic looks at.
// Anything longer is left unclassified.
const maxClassifiableInstructions = 3

// instructionPredicate matches a single parsed instruction.
type instructionPredicate func(ParsedInstruction) bool

// isAssociatedCreate matches the associated-token program's create instruction.
func isAssociatedCreate(ix ParsedInstruction) bool {
	return ix.Program == ProgramAssociatedToken && ix.Type == TypeCreate
}

// isTransferType matches transfer and transferChecked, whatever the program.
func isTransferType(ix ParsedInstruction) bool {
	return ix.Type == TypeTransfer || ix.Type == TypeTransferChecked
}

// isBurnType matches burn and burnChecked.
func isBurnType(ix ParsedInstruction) bool {
	return ix.Type == TypeBurn || ix.Type == TypeBurnChecked
}

// firstIndex returns the index of the first instruction matching pred, or -1.
// Ties are always broken by list order.
func firstIndex(ixs []ParsedInstruction, pred instructionPredicate) int {
	for i, ix := range ixs {
		if pred(ix) {
			return i
		}
	}
	return -1
}

// SelectCandidate picks the index of the instruction that represents the transaction,
// or -1 when the transaction is not classifiable.
//
// A single instruction is always the candidate. For two or three instructions, a
// transaction containing an associated-token create is treated as a mint/transfer and
// the first transfer is chosen; otherwise the first burn is chosen. Longer transactions
// are never classified.
func SelectCandidate(ixs []ParsedInstruction) int {
	n := len(ixs)
	switch {
	case n == 1:
		return 0
	case n > 1 && n <= maxClassifiableInstructions:
		if firstIndex(ixs, isAssociatedCreate) >= 0 {
			return firstIndex(ixs, isTransferType)
		}
		return firstIndex(ixs, isBurnType)
	default:
		return -1
	}
}
