package engine

import (
	"math"
	"testing"

	"github.com/wfunc/pongserver/models"
	"github.com/wfunc/pongserver/physics"
)

func TestPredictImpact_StraightShot(t *testing.T) {
	st := physics.NewState()
	st.BallX = 0.5
	st.BallY = 0.3
	st.Speed = 0.01
	st.Angle = 0 // due right, no vertical travel

	if got := predictImpact(st); got != 0.3 {
		t.Errorf("A flat shot should land at the ball's height, got %f", got)
	}
}

func TestPredictImpact_BallMovingAway(t *testing.T) {
	st := physics.NewState()
	st.Speed = 0.01
	st.Angle = math.Pi // due left

	if got := predictImpact(st); got != 0.5 {
		t.Errorf("Expected the pilot to recenter when the ball moves away, got %f", got)
	}
}

func TestPredictImpact_StaysInField(t *testing.T) {
	for i := 0; i < 500; i++ {
		st := physics.NewState()
		st.Speed = physics.MaxBallSpeed
		st.BallX = 0.1
		st.BallY = 0.05
		st.Angle = 1.2 // steep climb, forces wall folds

		got := predictImpact(st)
		if got < 0 || got > 1 {
			t.Fatalf("Predicted impact %f outside the field", got)
		}
	}
}

func TestAIStep_SteersTowardTarget(t *testing.T) {
	e, _, _ := newTestEngine()

	r, _ := e.join(models.ModeVsAI, "alice")
	e.startParty(models.ModeVsAI, "alice")

	sess := e.sessions[r.PartyID]
	sess.State.Speed = 0.01
	sess.State.Angle = 0.4 // heading right and down
	sess.State.BallX = 0.5
	sess.State.BallY = 0.5
	sess.State.Paddle2Y = 0.1

	e.aiStep(sess)
	if !sess.input2.Down && !sess.input2.Up {
		t.Error("Expected the pilot to move once a prediction exists")
	}

	p := e.pilots[r.PartyID]
	if sess.State.Paddle2Y < p.targetY && !sess.input2.Down {
		t.Error("Pilot below target should not hold still")
	}
}
