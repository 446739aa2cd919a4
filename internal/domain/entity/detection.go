package entity

// FaceDetection результат внешней модели для одного лица.
type FaceDetection struct {
	Landmarks   []Landmark         // точки лица в порядке модели
	Blendshapes map[string]float64 // имя выражения -> оценка
	Transform   []float64          // матрица 4x4 построчно, nil если модель её не вернула
}

// HeadPose поза головы из матрицы преобразования лица.
type HeadPose struct {
	Rotation    [3][3]float64
	Translation [3]float64
}

// HeadPose выделяет вращение и смещение из Transform.
// Возвращает false, если матрицы нет или она не 4x4.
func (d *FaceDetection) HeadPose() (HeadPose, bool) {
	var pose HeadPose
	if d == nil || len(d.Transform) != 16 {
		return pose, false
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			pose.Rotation[r][c] = d.Transform[r*4+c]
		}
		pose.Translation[r] = d.Transform[r*4+3]
	}
	return pose, true
}
