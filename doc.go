// Package ontoscore maintains a bitemporal ontology of corporate
// relationships and computes relational risk scores over it.
//
// Objects and links are versioned, never destroyed: every write opens a
// new version and closes the old one, so any past graph state can be
// queried with an as-of instant. A closed 35-entry relationship
// taxonomy weights each link, a deterministic detector finds risk
// amplification patterns around a company, and a five-component engine
// folds both into a single score with an explainable breakdown.
//
// # Basic Usage
//
// Create a client over any storage driver:
//
//	// In-memory driver, good for tests and exploration
//	client, err := ontoscore.NewClient(driver.NewMemoryDriver(), nil, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	// Or badger for embedded persistence
//	d, err := driver.NewBadgerDriver("./ontoscore_db")
//
// # Building the graph
//
//	companyID, err := client.UpsertObject(ctx, ontology.UpsertRequest{
//		Type:        types.ObjectTypeCompany,
//		IdentityKey: "company:acme",
//		Properties:  types.Properties{"name": types.String("Acme Corp")},
//		Confidence:  0.9,
//	})
//
//	link, err := client.CreateLink(ctx, ontology.CreateLinkRequest{
//		Type:       types.LinkOwnsCBIn,
//		SourceID:   fundID,
//		TargetID:   companyID,
//		Strength:   0.6,
//		Confidence: 0.9,
//	})
//
// # Scoring
//
//	result, err := client.CalculateRiskScore(ctx, companyID,
//		scoring.AsOf(time.Now()), scoring.Persist())
//
// The result carries the total score, its risk level, the five weighted
// components with their factors, and any warnings. With Persist, a
// RiskScore snapshot object is written and severity boundary crossings
// raise RelationalRiskSignal objects linked to the company.
package ontoscore
