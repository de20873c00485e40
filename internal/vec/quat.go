package vec

import "math"

// Quat - ориентация в виде кватерниона {x,y,z,w}.
// Нормализация не поддерживается принудительно.
type Quat struct {
	X float64 `json:"x" yaml:"x" bson:"x"`
	Y float64 `json:"y" yaml:"y" bson:"y"`
	Z float64 `json:"z" yaml:"z" bson:"z"`
	W float64 `json:"w" yaml:"w" bson:"w"`
}

// Identity возвращает единичную ориентацию
func Identity() Quat {
	return Quat{W: 1}
}

// WithYaw записывает поворот по курсу angle (радианы) через половинный угол.
// Меняются только Y и W, X и Z сохраняют прежние значения: клиенты
// ожидают именно такую форму.
func (q Quat) WithYaw(angle float64) Quat {
	q.Y = math.Sin(angle / 2)
	q.W = math.Cos(angle / 2)
	return q
}

// IsFinite проверяет отсутствие NaN и бесконечностей
func (q Quat) IsFinite() bool {
	return isFinite(q.X) && isFinite(q.Y) && isFinite(q.Z) && isFinite(q.W)
}

// Heading вычисляет курс движения по плоскости XZ (atan2(dx, dz))
func Heading(dir Vec3) float64 {
	return math.Atan2(dir.X, dir.Z)
}
