package rep3

// CorruptTranscript perturbs the first recorded batch result so tests can
// exercise the consistency check's failure path.
func (p *Protocol) CorruptTranscript() {
	p.transcript[0].Left = p.transcript[0].Left.Add(p.sess.Field.One())
}
