package stepgate_test

import (
	"context"
	"fmt"
	"log"

	"github.com/accredia/stepgate"
)

// Example demonstrates defining a snapshot with the builder, admitting a
// participant and walking it through to badge printing.
func Example() {
	ctx := context.Background()
	eng := stepgate.NewInMemoryEngine()

	snap := stepgate.NewSnapshot("visitor-accreditation", 1).
		Entry(stepgate.Step{ID: "registration", NextStepID: "security"}).
		Step(stepgate.Step{
			ID:                "security",
			NextStepID:        "badge",
			RejectionTargetID: "registration",
		}).
		Final(stepgate.Step{ID: "badge"}).
		MustBuild()

	if err := eng.RegisterSnapshot(ctx, snap); err != nil {
		log.Fatal(err)
	}

	p, err := eng.AdmitParticipant(ctx, "expo-berlin", snap.ID)
	if err != nil {
		log.Fatal(err)
	}

	for _, action := range []stepgate.Action{
		stepgate.ActionApprove,
		stepgate.ActionApprove,
		stepgate.ActionPrint,
	} {
		res, err := eng.ProcessWorkflowAction(ctx, p.ID, "clerk", action, "", nil)
		if err != nil {
			log.Fatal(err)
		}
		if res.IsComplete {
			fmt.Println("journey complete")
		} else {
			fmt.Printf("moved from %s to %s\n", res.PreviousStepID, res.NextStepID)
		}
	}

	// Output:
	// moved from registration to security
	// moved from security to badge
	// journey complete
}
