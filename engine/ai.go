// engine/ai.go
package engine

import (
	"math"
	"math/rand"
	"time"

	"github.com/wfunc/pongserver/physics"
)

const (
	aiPredictInterval = time.Second
	aiMaxBounces      = 16
	aiBounceNoise     = 0.15 // radians of perturbation per wall bounce
	aiDeadzone        = 0.02
)

// pilot drives the right paddle of a vs-AI party. It re-predicts the
// ball's arrival at most once per second and steers toward the cached
// target in between, through the same input contract as a human.
type pilot struct {
	targetY     float64
	lastPredict time.Time
}

func (e *Engine) aiStep(sess *Session) {
	p, ok := e.pilots[sess.PartyID]
	if !ok {
		p = &pilot{targetY: 0.5}
		e.pilots[sess.PartyID] = p
	}

	if time.Since(p.lastPredict) >= aiPredictInterval {
		p.targetY = predictImpact(sess.State)
		p.lastPredict = time.Now()
	}

	var in physics.Input
	if p.targetY < sess.State.Paddle2Y-aiDeadzone {
		in.Up = true
	} else if p.targetY > sess.State.Paddle2Y+aiDeadzone {
		in.Down = true
	}
	sess.input2 = in
}

// predictImpact projects the ball's straight-line trajectory toward the
// right paddle, folding at the walls. Each bounce perturbs the heading a
// little so the computer stays beatable. The reflection loop is bounded;
// a ball heading away parks the paddle at center.
func predictImpact(st physics.State) float64 {
	dx := math.Cos(st.Angle)
	dy := math.Sin(st.Angle)
	if dx <= 0 {
		return 0.5
	}

	x, y := st.BallX, st.BallY
	targetX := physics.Paddle2X - physics.PaddleHalfWidth

	for i := 0; i < aiMaxBounces; i++ {
		yAtTarget := y + dy*(targetX-x)/dx
		if yAtTarget >= 0 && yAtTarget <= 1 {
			return yAtTarget
		}

		// Fold at the nearer wall and keep going.
		wallY := 0.0
		if dy > 0 {
			wallY = 1.0
		}
		x += dx * (wallY - y) / dy
		y = wallY
		dy = -dy

		angle := math.Atan2(dy, dx) + (rand.Float64()*2-1)*aiBounceNoise
		dx = math.Cos(angle)
		dy = math.Sin(angle)
		if dx <= 0 {
			return 0.5
		}
	}
	return y
}
