package github

// StripTeamPrefixForTest exposes stripTeamPrefix.
var StripTeamPrefixForTest = stripTeamPrefix

// QualifyHeadForTest exposes qualifyHead.
func (p *Provider) QualifyHeadForTest(
	head string,
) string {
	return p.qualifyHead(head)
}
