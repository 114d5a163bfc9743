// physics/physics.go
package physics

import (
	"math"
	"math/rand"
)

// Playfield constants, normalized to a 0..1 square.
const (
	PaddleSpeed      = 0.02
	PaddleHalfHeight = 0.1
	PaddleHalfWidth  = 0.015
	Paddle1X         = 0.03 // left paddle center
	Paddle2X         = 0.97 // right paddle center

	InitialBallSpeed = 0.01
	SpeedIncrement   = 0.001
	MaxBallSpeed     = 0.022

	MaxBounceAngle = math.Pi / 4 // edge hit deflection
	MaxServeAngle  = math.Pi / 6

	WinScore = 11
)

// State is the full physics state of one match. It is a plain value with no
// I/O; every transform below is deterministic apart from serve randomness.
type State struct {
	Paddle1Y float64
	Paddle2Y float64
	BallX    float64
	BallY    float64
	Angle    float64
	Speed    float64
	Score1   int
	Score2   int
}

// Input 单侧球拍的移动意图
type Input struct {
	Up   bool
	Down bool
}

// NewState returns a centered state with speed zero. Zero speed marks a
// session that has not served yet; the simulation loop resets the round
// when it sees it.
func NewState() State {
	return State{
		Paddle1Y: 0.5,
		Paddle2Y: 0.5,
		BallX:    0.5,
		BallY:    0.5,
	}
}

// MovePaddles advances both paddles by one tick of their movement intent,
// clamped so the paddle never crosses the playfield edges.
func MovePaddles(st *State, in1, in2 Input) {
	st.Paddle1Y = movePaddle(st.Paddle1Y, in1)
	st.Paddle2Y = movePaddle(st.Paddle2Y, in2)
}

func movePaddle(y float64, in Input) float64 {
	if in.Up && !in.Down {
		y -= PaddleSpeed
	}
	if in.Down && !in.Up {
		y += PaddleSpeed
	}
	return clamp(y, PaddleHalfHeight, 1-PaddleHalfHeight)
}

// MoveBall advances the ball by one tick: paddle reflection, wall mirror,
// boundary scoring. Returns the team side (1 or 2) that scored this tick,
// or 0. A scoring tick resets the round.
func MoveBall(st *State) int {
	st.BallX += st.Speed * math.Cos(st.Angle)
	st.BallY += st.Speed * math.Sin(st.Angle)

	// 上下墙反弹
	if st.BallY <= 0 {
		st.BallY = 0
		st.Angle = -st.Angle
	} else if st.BallY >= 1 {
		st.BallY = 1
		st.Angle = -st.Angle
	}

	// Paddle contact. The exit angle is a linear function of the offset
	// between ball and paddle center; edge hits leave at MaxBounceAngle.
	if math.Cos(st.Angle) < 0 && st.BallX <= Paddle1X+PaddleHalfWidth {
		if offset, hit := paddleOffset(st.BallY, st.Paddle1Y); hit {
			st.BallX = Paddle1X + PaddleHalfWidth
			st.Angle = offset * MaxBounceAngle
			st.Speed = math.Min(st.Speed+SpeedIncrement, MaxBallSpeed)
			return 0
		}
	}
	if math.Cos(st.Angle) > 0 && st.BallX >= Paddle2X-PaddleHalfWidth {
		if offset, hit := paddleOffset(st.BallY, st.Paddle2Y); hit {
			st.BallX = Paddle2X - PaddleHalfWidth
			st.Angle = math.Pi - offset*MaxBounceAngle
			st.Speed = math.Min(st.Speed+SpeedIncrement, MaxBallSpeed)
			return 0
		}
	}

	// 越界得分
	if st.BallX < 0 {
		st.Score2++
		ResetRound(st)
		return 2
	}
	if st.BallX > 1 {
		st.Score1++
		ResetRound(st)
		return 1
	}
	return 0
}

// paddleOffset reports whether the ball is inside the paddle's contact box
// and the normalized -1..1 offset from the paddle center.
func paddleOffset(ballY, paddleY float64) (float64, bool) {
	offset := ballY - paddleY
	if math.Abs(offset) > PaddleHalfHeight {
		return 0, false
	}
	return clamp(offset/PaddleHalfHeight, -1, 1), true
}

// ResetRound recenters paddles and ball and serves toward a random side at
// a random angle within ±MaxServeAngle. Speed returns to the initial value.
func ResetRound(st *State) {
	st.Paddle1Y = 0.5
	st.Paddle2Y = 0.5
	st.BallX = 0.5
	st.BallY = 0.5
	st.Speed = InitialBallSpeed

	angle := (rand.Float64()*2 - 1) * MaxServeAngle
	if rand.Intn(2) == 0 {
		angle = math.Pi - angle
	}
	st.Angle = angle
}

// Winner returns the side (1 or 2) whose score reached the win threshold,
// or 0 while the match is still running.
func Winner(st State) int {
	if st.Score1 >= WinScore {
		return 1
	}
	if st.Score2 >= WinScore {
		return 2
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
